package zeroshot

import (
	"context"
	"strings"
)

// Chooser asks a language model to pick one candidate.
// adapters.ChoiceLLMClient implements it.
type Chooser interface {
	Choose(ctx context.Context, text string, candidates []string) (string, error)
}

// LLMScorer ranks the candidate named by a chat model first
type LLMScorer struct {
	chooser Chooser
}

var _ Scorer = (*LLMScorer)(nil)

// NewLLMScorer creates a scorer backed by chooser
func NewLLMScorer(chooser Chooser) *LLMScorer {
	return &LLMScorer{chooser: chooser}
}

// Score implements Scorer. A reply that names no candidate yields an empty ranking.
func (s *LLMScorer) Score(ctx context.Context, text string, candidates []string) ([]LabelScore, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}
	reply, err := s.chooser.Choose(ctx, text, candidates)
	if err != nil {
		return nil, err
	}

	picked := matchCandidate(reply, candidates)
	if picked < 0 {
		return nil, nil
	}
	scores := make([]LabelScore, 0, len(candidates))
	scores = append(scores, LabelScore{Label: candidates[picked], Score: 1})
	for i, candidate := range candidates {
		if i != picked {
			scores = append(scores, LabelScore{Label: candidate})
		}
	}
	return scores, nil
}

// matchCandidate finds the candidate a reply refers to, ignoring case,
// surrounding quotes and a trailing period.
func matchCandidate(reply string, candidates []string) int {
	normalized := normalizeReply(reply)
	for i, candidate := range candidates {
		if normalized == strings.ToLower(candidate) {
			return i
		}
	}
	return -1
}

func normalizeReply(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimSuffix(reply, ".")
	reply = strings.Trim(reply, "\"'`")
	return strings.ToLower(strings.TrimSpace(reply))
}
