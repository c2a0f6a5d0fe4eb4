package flat

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

// Artifact layout: the vector file is binary (magic, format version, count,
// dimension, then float32 little-endian rows); the metadata file is a
// versioned JSON document with one chunk per vector position. Both files
// must exist and agree on length or the pair is unusable.

var vectorFileMagic = [4]byte{'S', 'I', 'D', 'X'}

const formatVersion uint32 = 1

type vectorFileHeader struct {
	Magic     [4]byte
	Version   uint32
	Count     uint32
	Dimension uint32
}

type metadataFile struct {
	Version int                   `json:"version"`
	Chunks  []domain.StatuteChunk `json:"chunks"`
}

// Save writes both artifacts atomically: each is written to a temp file in
// the target directory and renamed into place, so readers never observe a
// partially written file.
func (ix *Index) Save(indexPath, metaPath string) error {
	var buf bytes.Buffer
	header := vectorFileHeader{
		Magic:     vectorFileMagic,
		Version:   formatVersion,
		Count:     uint32(len(ix.chunks)),
		Dimension: uint32(ix.dim),
	}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("encode vector header: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, ix.vectors); err != nil {
		return fmt.Errorf("encode vectors: %w", err)
	}
	if err := writeFileAtomic(indexPath, buf.Bytes()); err != nil {
		return fmt.Errorf("write vector file: %w", err)
	}

	meta, err := json.Marshal(metadataFile{Version: 1, Chunks: ix.chunks})
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := writeFileAtomic(metaPath, meta); err != nil {
		return fmt.Errorf("write metadata file: %w", err)
	}
	return nil
}

// Load reads the artifact pair. A missing vector or metadata file yields
// domain.ErrIndexNotFound; any shape mismatch between the two fails loudly.
func Load(indexPath, metaPath string) (*Index, error) {
	raw, err := os.ReadFile(indexPath)
	if err != nil {
		if isNotExist(err) {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "load vector file", err)
		}
		return nil, fmt.Errorf("read vector file: %w", err)
	}

	reader := bytes.NewReader(raw)
	var header vectorFileHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("decode vector header: %w", err)
	}
	if header.Magic != vectorFileMagic {
		return nil, fmt.Errorf("vector file magic mismatch")
	}
	if header.Version != formatVersion {
		return nil, fmt.Errorf("unsupported vector file version %d", header.Version)
	}

	vectors := make([]float32, int(header.Count)*int(header.Dimension))
	if err := binary.Read(reader, binary.LittleEndian, &vectors); err != nil {
		return nil, fmt.Errorf("decode vectors: %w", err)
	}
	if reader.Len() != 0 {
		return nil, fmt.Errorf("vector file has %d trailing bytes", reader.Len())
	}

	chunks, err := loadMetadata(metaPath)
	if err != nil {
		return nil, err
	}
	if len(chunks) != int(header.Count) {
		return nil, fmt.Errorf("metadata has %d chunks, vector file has %d entries", len(chunks), header.Count)
	}

	return &Index{
		dim:     int(header.Dimension),
		vectors: vectors,
		chunks:  chunks,
	}, nil
}

func loadMetadata(metaPath string) ([]domain.StatuteChunk, error) {
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if isNotExist(err) {
			return nil, domain.WrapError(domain.ErrIndexNotFound, "load metadata file", err)
		}
		return nil, fmt.Errorf("read metadata file: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	var meta metadataFile
	if err := decoder.Decode(&meta); err != nil {
		return nil, fmt.Errorf("decode metadata file: %w", err)
	}
	if meta.Version != 1 {
		return nil, fmt.Errorf("unsupported metadata version %d", meta.Version)
	}
	return meta.Chunks, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
