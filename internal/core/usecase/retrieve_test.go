package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/lexgo/statute-consult/internal/core/domain"
)

type fakeEmbedder struct {
	lastQuery string
	queryVec  []float32
	queryErr  error

	batches  [][]string
	batchErr error
	vectorFn func(text string) []float32
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if f.vectorFn != nil {
			out = append(out, f.vectorFn(t))
		} else {
			out = append(out, []float32{float32(len(t))})
		}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.lastQuery = text
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryVec != nil {
		return f.queryVec, nil
	}
	return []float32{1, 2, 3}, nil
}

type fakeIndex struct {
	lastK   int
	results []domain.SearchResult
	err     error
}

func (f *fakeIndex) Search(_ []float32, k int) ([]domain.SearchResult, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeIndex) Len() int { return len(f.results) }

func TestSearchWithTopicEnrichesQuery(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{results: []domain.SearchResult{{Content: "article one"}}}
	uc := NewRetrieveUseCase(emb, idx, 5, nil)

	results, err := uc.SearchWithTopic(context.Background(), "contract law", "what is an offer", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if emb.lastQuery != "contract law what is an offer" {
		t.Fatalf("embedded query = %q", emb.lastQuery)
	}
	if idx.lastK != 2 {
		t.Fatalf("k = %d, want 2", idx.lastK)
	}
	if len(results) != 1 || results[0].Content != "article one" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestSearchWithoutTopicLeavesQueryBare(t *testing.T) {
	emb := &fakeEmbedder{}
	uc := NewRetrieveUseCase(emb, &fakeIndex{}, 5, nil)

	if _, err := uc.Search(context.Background(), "what is an offer", 3); err != nil {
		t.Fatalf("search: %v", err)
	}
	if emb.lastQuery != "what is an offer" {
		t.Fatalf("embedded query = %q", emb.lastQuery)
	}
}

func TestSearchDefaultsK(t *testing.T) {
	idx := &fakeIndex{}
	uc := NewRetrieveUseCase(&fakeEmbedder{}, idx, 7, nil)

	if _, err := uc.Search(context.Background(), "question", 0); err != nil {
		t.Fatalf("search: %v", err)
	}
	if idx.lastK != 7 {
		t.Fatalf("k = %d, want configured default 7", idx.lastK)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	uc := NewRetrieveUseCase(&fakeEmbedder{}, &fakeIndex{}, 5, nil)

	_, err := uc.Search(context.Background(), "   ", 5)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input kind", err)
	}
}

func TestSearchWrapsFailuresAsRetrieval(t *testing.T) {
	boom := errors.New("upstream down")

	uc := NewRetrieveUseCase(&fakeEmbedder{queryErr: boom}, &fakeIndex{}, 5, nil)
	_, err := uc.Search(context.Background(), "q", 5)
	if !domain.IsKind(err, domain.ErrRetrieval) || !errors.Is(err, boom) {
		t.Fatalf("embed failure err = %v", err)
	}

	uc = NewRetrieveUseCase(&fakeEmbedder{}, &fakeIndex{err: boom}, 5, nil)
	_, err = uc.Search(context.Background(), "q", 5)
	if !domain.IsKind(err, domain.ErrRetrieval) || !errors.Is(err, boom) {
		t.Fatalf("index failure err = %v", err)
	}
}
