package zeroshot

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/FrenchMajesty/newsbench/corpus"
	"github.com/FrenchMajesty/newsbench/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// keywordEmbedder maps texts to a fixed axis per keyword
type keywordEmbedder struct {
	axes  []string
	calls map[string]int
}

func newKeywordEmbedder(axes ...string) *keywordEmbedder {
	return &keywordEmbedder{axes: axes, calls: make(map[string]int)}
}

func (e *keywordEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	e.calls[text]++
	vec := make([]float32, len(e.axes)+1)
	vec[len(e.axes)] = 0.1
	for i, axis := range e.axes {
		vec[i] = float32(strings.Count(strings.ToLower(text), axis))
	}
	return vec, nil
}

type chooserFunc func(ctx context.Context, text string, candidates []string) (string, error)

func (f chooserFunc) Choose(ctx context.Context, text string, candidates []string) (string, error) {
	return f(ctx, text, candidates)
}

type scorerFunc func(ctx context.Context, text string, candidates []string) ([]LabelScore, error)

func (f scorerFunc) Score(ctx context.Context, text string, candidates []string) ([]LabelScore, error) {
	return f(ctx, text, candidates)
}

func TestMemoryIndex_SearchOrdersBySimilarity(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "x", []float32{1, 0}, map[string]any{"label": "x"}))
	require.NoError(t, idx.Upsert(ctx, "y", []float32{0, 1}, nil))
	require.NoError(t, idx.Upsert(ctx, "xy", []float32{1, 1}, nil))

	matches, err := idx.Search(ctx, []float32{2, 0.1}, 2, nil)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "x", matches[0].ID)
	assert.Equal(t, "xy", matches[1].ID)
	assert.Equal(t, "x", matches[0].Metadata["label"])

	_, err = idx.Search(ctx, []float32{1, 2, 3}, 1, nil)
	assert.Error(t, err)
	assert.Error(t, idx.Upsert(ctx, "empty", nil, nil))
}

func TestMemoryIndex_SearchAppliesFilter(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0}, map[string]any{"label": "baseball"}))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1}, map[string]any{"label": "graphics"}))
	require.NoError(t, idx.Upsert(ctx, "c", []float32{1, 0.1}, map[string]any{"source": "other"}))

	matches, err := idx.Search(ctx, []float32{1, 0}, 10, types.In("label", []string{"graphics", "baseball"}))
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a", matches[0].ID)
	assert.Equal(t, "b", matches[1].ID)

	matches, err = idx.Search(ctx, []float32{1, 0}, 10, types.Filter{"label": "graphics"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].ID)
}

func TestEmbeddingScorer_IgnoresOtherVectorsInSharedIndex(t *testing.T) {
	ctx := context.Background()
	embedder := newKeywordEmbedder("baseball", "graphics")
	idx := NewMemoryIndex()
	// closer to a baseball document than any candidate hypothesis
	require.NoError(t, idx.Upsert(ctx, "foreign-1", []float32{5, 0, 0.1}, map[string]any{"label": "sports"}))
	require.NoError(t, idx.Upsert(ctx, "foreign-2", []float32{5, 0, 0.2}, nil))

	scorer, err := NewEmbeddingScorer(embedder, EmbeddingScorerConfig{Index: idx})
	require.NoError(t, err)

	scores, err := scorer.Score(ctx, "baseball baseball", []string{"baseball", "graphics"})
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "baseball", scores[0].Label)
	assert.Equal(t, "graphics", scores[1].Label)
	assert.Greater(t, scores[1].Score, 0.0, "every candidate is returned by the index")
	assert.InDelta(t, 1.0, scores[0].Score+scores[1].Score, 1e-9)
}

func TestEmbeddingScorer_ResetReindexesCandidates(t *testing.T) {
	embedder := newKeywordEmbedder("baseball")
	scorer, err := NewEmbeddingScorer(embedder, EmbeddingScorerConfig{})
	require.NoError(t, err)

	_, err = scorer.Score(context.Background(), "baseball", []string{"baseball"})
	require.NoError(t, err)
	scorer.Reset()
	_, err = scorer.Score(context.Background(), "baseball", []string{"baseball"})
	require.NoError(t, err)

	assert.Equal(t, 2, embedder.calls["This example is baseball."])
}

func TestEmbeddingScorer_RanksMatchingCandidateFirst(t *testing.T) {
	embedder := newKeywordEmbedder("baseball", "guns")
	scorer, err := NewEmbeddingScorer(embedder, EmbeddingScorerConfig{})
	require.NoError(t, err)

	candidates := []string{"politics, guns", "baseball"}
	scores, err := scorer.Score(context.Background(), "the baseball season opener", candidates)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, "baseball", scores[0].Label)
	assert.InDelta(t, 1.0, scores[0].Score+scores[1].Score, 1e-9)
	assert.Greater(t, scores[0].Score, scores[1].Score)

	_, err = scorer.Score(context.Background(), "guns and more guns", candidates)
	require.NoError(t, err)
	assert.Equal(t, 1, embedder.calls["This example is baseball."], "hypotheses are indexed once")
	assert.Equal(t, "This example is politics, guns.", scorer.Hypothesis("politics, guns"))
}

func TestEmbeddingScorer_Errors(t *testing.T) {
	_, err := NewEmbeddingScorer(nil, EmbeddingScorerConfig{})
	assert.Error(t, err)

	_, err = NewEmbeddingScorer(newKeywordEmbedder(), EmbeddingScorerConfig{HypothesisTemplate: "no placeholder"})
	assert.Error(t, err)

	scorer, err := NewEmbeddingScorer(newKeywordEmbedder(), EmbeddingScorerConfig{})
	require.NoError(t, err)
	_, err = scorer.Score(context.Background(), "text", nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestLLMScorer_MatchesReply(t *testing.T) {
	candidates := []string{"computer graphics", "baseball"}
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{name: "exact", reply: "baseball", want: "baseball"},
		{name: "case and punctuation", reply: " \"Computer Graphics\". ", want: "computer graphics"},
		{name: "unknown label", reply: "hockey", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := NewLLMScorer(chooserFunc(func(context.Context, string, []string) (string, error) {
				return tt.reply, nil
			}))
			scores, err := scorer.Score(context.Background(), "text", candidates)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Empty(t, scores)
				return
			}
			require.Len(t, scores, 2)
			assert.Equal(t, tt.want, scores[0].Label)
			assert.Equal(t, 1.0, scores[0].Score)
		})
	}
}

func TestLLMScorer_PropagatesErrors(t *testing.T) {
	boom := errors.New("rate limited")
	scorer := NewLLMScorer(chooserFunc(func(context.Context, string, []string) (string, error) {
		return "", boom
	}))
	_, err := scorer.Score(context.Background(), "text", []string{"a"})
	assert.ErrorIs(t, err, boom)

	_, err = scorer.Score(context.Background(), "text", nil)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func testProvider(t *testing.T, cats corpus.CategorySet) corpus.Provider {
	t.Helper()
	test := []corpus.Document{
		{Text: "graphics shader render", Label: 0},
		{Text: "baseball pitcher", Label: 1},
		{Text: "more graphics", Label: 0},
		{Text: "baseball inning", Label: 1},
	}
	loader, err := corpus.NewLoader(&corpus.StaticSource{Train: test, Test: test}, cats, corpus.LoaderConfig{})
	require.NoError(t, err)
	return loader
}

func twoCategories() corpus.CategorySet {
	return corpus.CategorySet{
		{Name: "comp.graphics", Description: "computer graphics"},
		{Name: "rec.sport.baseball", Description: "baseball"},
	}
}

func TestStrategy_ComparesTopLabelWithDescription(t *testing.T) {
	cats := twoCategories()
	embedder := newKeywordEmbedder("graphics", "baseball")
	scorer, err := NewEmbeddingScorer(embedder, EmbeddingScorerConfig{})
	require.NoError(t, err)

	strategy, err := NewStrategy(testProvider(t, cats), cats, scorer, Config{})
	require.NoError(t, err)
	assert.Equal(t, "zeroshot", strategy.Name())

	acc, err := strategy.Run(context.Background(), 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)
}

func TestStrategy_UndecidedDocumentsCountAsWrong(t *testing.T) {
	cats := twoCategories()
	calls := 0
	scorer := scorerFunc(func(_ context.Context, text string, candidates []string) ([]LabelScore, error) {
		calls++
		assert.Equal(t, []string{"computer graphics", "baseball"}, candidates)
		if strings.Contains(text, "baseball") {
			return []LabelScore{{Label: "baseball", Score: 1}}, nil
		}
		return nil, nil
	})

	strategy, err := NewStrategy(testProvider(t, cats), cats, scorer, Config{})
	require.NoError(t, err)

	acc, err := strategy.Run(context.Background(), 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)
	assert.Equal(t, 4, calls)
}

func TestStrategy_UnmatchedRepliesScoreZero(t *testing.T) {
	cats := twoCategories()
	scorer := NewLLMScorer(chooserFunc(func(context.Context, string, []string) (string, error) {
		return "I cannot decide", nil
	}))
	strategy, err := NewStrategy(testProvider(t, cats), cats, scorer, Config{})
	require.NoError(t, err)

	acc, err := strategy.Run(context.Background(), 1.0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)
}

func TestNewStrategy_RejectsBlankDescription(t *testing.T) {
	cats := corpus.CategorySet{
		{Name: "comp.graphics", Description: ""},
		{Name: "rec.sport.baseball", Description: "baseball"},
	}
	scorer := scorerFunc(func(context.Context, string, []string) ([]LabelScore, error) { return nil, nil })

	_, err := NewStrategy(testProvider(t, twoCategories()), cats, scorer, Config{})
	assert.Error(t, err)
}

func TestStrategy_EachRunReindexesCandidates(t *testing.T) {
	cats := twoCategories()
	embedder := newKeywordEmbedder("graphics", "baseball")
	scorer, err := NewEmbeddingScorer(embedder, EmbeddingScorerConfig{})
	require.NoError(t, err)
	strategy, err := NewStrategy(testProvider(t, cats), cats, scorer, Config{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = strategy.Run(context.Background(), 1.0)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, embedder.calls["This example is baseball."])
}

func TestStrategy_StopsOnScorerError(t *testing.T) {
	cats := twoCategories()
	boom := errors.New("service unavailable")
	scorer := scorerFunc(func(context.Context, string, []string) ([]LabelScore, error) {
		return nil, boom
	})
	strategy, err := NewStrategy(testProvider(t, cats), cats, scorer, Config{})
	require.NoError(t, err)

	_, err = strategy.Run(context.Background(), 1.0)
	assert.ErrorIs(t, err, boom)
}

func TestNewStrategy_WarnsOnDuplicateDescriptions(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	cats := corpus.CategorySet{
		{Name: "sci.electronics", Description: "science"},
		{Name: "sci.space", Description: "science"},
	}
	scorer := scorerFunc(func(context.Context, string, []string) ([]LabelScore, error) { return nil, nil })

	_, err := NewStrategy(testProvider(t, twoCategories()), cats, scorer, Config{Logger: zap.New(core)})
	require.NoError(t, err)

	entries := logs.FilterMessage("categories share descriptions").All()
	require.Len(t, entries, 1)
}
