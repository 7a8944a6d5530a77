package corpus

import "context"

// StaticSource serves fixed in-memory documents. Texts are returned as
// given; FetchOptions are ignored since the documents carry no metadata.
type StaticSource struct {
	Train []Document
	Test  []Document
}

var _ Source = (*StaticSource)(nil)

// Fetch implements Source
func (s *StaticSource) Fetch(ctx context.Context, categories CategorySet, subset Subset, opts FetchOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var docs []Document
	switch subset {
	case SubsetTrain:
		docs = s.Train
	case SubsetTest:
		docs = s.Test
	}

	out := make([]Document, len(docs))
	copy(out, docs)
	return out, nil
}
