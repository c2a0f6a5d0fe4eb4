package chunking

import (
	"regexp"
	"strings"
)

// DefaultMarkerPattern matches an article-boundary marker such as "第五十二条"
// or "第12条".
const DefaultMarkerPattern = `第[0-9０-９零一二三四五六七八九十百千万]+条`

// DefaultLawNameSuffix is stripped from filenames to derive the law name.
const DefaultLawNameSuffix = "English.txt"

// ArticleSplitter segments whole statute documents at article-boundary
// markers. A chunk spans one marker (inclusive) up to the next marker or end
// of document. No chunk size limit is enforced; very long articles stay
// whole and are truncated only at display time.
type ArticleSplitter struct {
	marker        *regexp.Regexp
	lawNameSuffix string
}

func NewArticleSplitter(markerPattern, lawNameSuffix string) (*ArticleSplitter, error) {
	if markerPattern == "" {
		markerPattern = DefaultMarkerPattern
	}
	if lawNameSuffix == "" {
		lawNameSuffix = DefaultLawNameSuffix
	}
	marker, err := regexp.Compile(markerPattern)
	if err != nil {
		return nil, err
	}
	return &ArticleSplitter{marker: marker, lawNameSuffix: lawNameSuffix}, nil
}

// Split returns the trimmed, non-empty article chunks of text. Text before
// the first marker is discarded; a document with no markers yields zero
// chunks and is left to the caller to report.
func (s *ArticleSplitter) Split(text string) []string {
	bounds := s.marker.FindAllStringIndex(text, -1)
	if len(bounds) == 0 {
		return nil
	}

	out := make([]string, 0, len(bounds))
	for i, b := range bounds {
		end := len(text)
		if i+1 < len(bounds) {
			end = bounds[i+1][0]
		}
		chunk := strings.TrimSpace(text[b[0]:end])
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// LawName derives the law name from a source filename by stripping the fixed
// suffix, falling back to a plain ".txt" strip.
func (s *ArticleSplitter) LawName(filename string) string {
	if name := strings.TrimSuffix(filename, s.lawNameSuffix); name != filename {
		return name
	}
	return strings.TrimSuffix(filename, ".txt")
}
