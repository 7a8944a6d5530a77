package corpus

import "context"

// DefaultSeed is the shuffling seed the benchmark passes to sources
const DefaultSeed int64 = 21

// StripOptions selects which newsgroup metadata is removed from each text
type StripOptions struct {
	Headers bool
	Footers bool
	Quotes  bool
}

// StripAll removes headers, signature blocks and quoted replies
var StripAll = StripOptions{Headers: true, Footers: true, Quotes: true}

// FetchOptions are passed to a Source on every fetch
type FetchOptions struct {
	Strip StripOptions
	Seed  int64
}

// Source provides raw labeled documents for a category set. Labels are
// indexes into the given CategorySet.
type Source interface {
	Fetch(ctx context.Context, categories CategorySet, subset Subset, opts FetchOptions) ([]Document, error)
}
