package corpus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func makeSplit(n int) Split {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{Text: fmt.Sprintf("t%d", i), Label: i % 4}
	}
	return NewSplit(docs)
}

func TestSelectPortion_PrefixLength(t *testing.T) {
	for _, n := range []int{0, 1, 7, 20, 1131} {
		full := makeSplit(n)
		for _, p := range []float64{0.1, 0.25, 0.5, 0.75, 0.99, 1.0} {
			t.Run(fmt.Sprintf("n=%d/p=%v", n, p), func(t *testing.T) {
				got := SelectPortion(full, p)
				want := int(p * float64(n))

				assert.Equal(t, want, got.Len())
				assert.Equal(t, want, len(got.Texts))
				assert.Equal(t, full.Texts[:want], got.Texts)
				assert.Equal(t, full.Labels[:want], got.Labels)
			})
		}
	}
}

func TestSelectPortion_Identity(t *testing.T) {
	full := makeSplit(13)
	assert.Equal(t, full, SelectPortion(full, 1.0))
}

func TestSelectPortion_DoesNotAliasOnAppend(t *testing.T) {
	full := makeSplit(10)
	half := SelectPortion(full, 0.5)

	half.Texts = append(half.Texts, "appended")
	assert.Equal(t, "t5", full.Texts[5])
}

func TestSelectPortion_ClampsOutOfRange(t *testing.T) {
	full := makeSplit(10)
	assert.Equal(t, 0, SelectPortion(full, -0.5).Len())
	assert.Equal(t, 10, SelectPortion(full, 1.5).Len())
}
