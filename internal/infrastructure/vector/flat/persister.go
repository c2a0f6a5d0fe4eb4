package flat

import "github.com/lexgo/statute-consult/internal/core/domain"

// Persister builds an in-memory index from a finished vector/chunk pair
// and writes both artifacts to the configured paths.
type Persister struct {
	indexPath    string
	metadataPath string
}

func NewPersister(indexPath, metadataPath string) *Persister {
	return &Persister{indexPath: indexPath, metadataPath: metadataPath}
}

func (p *Persister) Persist(vectors [][]float32, chunks []domain.StatuteChunk) (int, error) {
	idx, err := Build(vectors, chunks)
	if err != nil {
		return 0, err
	}
	if err := idx.Save(p.indexPath, p.metadataPath); err != nil {
		return 0, err
	}
	return idx.Dimension(), nil
}
