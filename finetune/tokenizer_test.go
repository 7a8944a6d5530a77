package finetune

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	tok, err := NewTokenizer([]string{PadToken, UnkToken, ClsToken, SepToken, "un", "##aff", "##able", "hello", ",", "world"})
	require.NoError(t, err)
	return tok
}

func TestTokenizer_WordPiece(t *testing.T) {
	tok := testTokenizer(t)

	assert.Equal(t,
		[]string{"un", "##aff", "##able", ",", "hello", "world", UnkToken},
		tok.Tokenize("Unaffable, HELLO world!"))
	assert.Equal(t, []string{"hello"}, tok.Tokenize("ｈｅｌｌｏ"), "fullwidth input is NFKC normalised")
	assert.Equal(t, []string{UnkToken}, tok.Tokenize("unhello"), "partially covered words become [UNK]")
}

func TestTokenizer_EncodePadsToLongest(t *testing.T) {
	tok := testTokenizer(t)

	enc := tok.Encode([]string{"hello", "hello world"}, EncodeOptions{Padding: PadLongest, Truncation: true})

	assert.Equal(t, [][]int{{2, 7, 3, 0}, {2, 7, 9, 3}}, enc.InputIDs)
	assert.Equal(t, [][]int{{1, 1, 1, 0}, {1, 1, 1, 1}}, enc.AttentionMask)
}

func TestTokenizer_EncodeTruncates(t *testing.T) {
	tok := testTokenizer(t)

	enc := tok.Encode([]string{"hello world hello"}, EncodeOptions{Truncation: true, MaxLength: 3})
	assert.Equal(t, [][]int{{2, 7, 3}}, enc.InputIDs)

	enc = tok.Encode([]string{"hello world hello"}, EncodeOptions{MaxLength: 3})
	assert.Len(t, enc.InputIDs[0], 5, "no truncation unless requested")
}

func TestNewTokenizer_RequiresSpecialTokens(t *testing.T) {
	_, err := NewTokenizer([]string{PadToken, UnkToken, "hello"})
	assert.ErrorIs(t, err, ErrMissingSpecialToken)
}

func TestBuildVocab(t *testing.T) {
	tok, err := BuildVocab([]string{"b a a", "c"}, 100)
	require.NoError(t, err)

	assert.Equal(t, []string{PadToken, UnkToken, ClsToken, SepToken, "a", "b", "c", "##a", "##b", "##c"}, tok.tokens)
	assert.Equal(t, []string{"a", "##b"}, tok.Tokenize("ab"))
	assert.Equal(t, 0, tok.PadID())

	capped, err := BuildVocab([]string{"b a a", "c"}, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, capped.VocabSize())
}

func TestTokenizer_VocabFileRoundTrip(t *testing.T) {
	tok := testTokenizer(t)
	path := filepath.Join(t.TempDir(), "vocab.txt")
	require.NoError(t, tok.SaveVocab(path))

	loaded, err := LoadVocab(path)
	require.NoError(t, err)
	assert.Equal(t, tok.tokens, loaded.tokens)
	assert.Equal(t, "##aff", loaded.Token(5))
	assert.Equal(t, UnkToken, loaded.Token(99))
}
