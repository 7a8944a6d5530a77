package zeroshot

import (
	"context"
	"errors"
	"sort"
)

// ErrNoCandidates is returned when a document is scored against no labels
var ErrNoCandidates = errors.New("no candidate labels")

// LabelScore is one candidate's score for a document
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Scorer ranks candidate labels for a text, best first. An empty ranking
// means the scorer could not decide.
type Scorer interface {
	Score(ctx context.Context, text string, candidates []string) ([]LabelScore, error)
}

// rank sorts scores best first, keeping candidate order among ties
func rank(scores []LabelScore) []LabelScore {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})
	return scores
}
