package finetune

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Special tokens. A vocabulary must contain all of them.
const (
	PadToken = "[PAD]"
	UnkToken = "[UNK]"
	ClsToken = "[CLS]"
	SepToken = "[SEP]"

	continuationPrefix = "##"
	maxCharsPerWord    = 100
)

// DefaultMaxLength matches the position limit of BERT-sized checkpoints
const DefaultMaxLength = 512

// ErrMissingSpecialToken is returned when a vocabulary lacks one of the special tokens
var ErrMissingSpecialToken = errors.New("vocabulary is missing a special token")

// Padding selects how Encode pads a batch
type Padding int

const (
	// PadNone leaves sequences at their natural length
	PadNone Padding = iota
	// PadLongest pads every sequence to the longest one in the batch
	PadLongest
)

// EncodeOptions controls batch encoding
type EncodeOptions struct {
	Padding    Padding
	Truncation bool
	// MaxLength bounds sequence length, special tokens included. If 0, uses DefaultMaxLength.
	MaxLength int
}

// Encoding is the batch output of Encode. Rows are index-aligned with the input texts.
type Encoding struct {
	InputIDs      [][]int
	AttentionMask [][]int
}

// Len returns the number of encoded sequences
func (e *Encoding) Len() int {
	return len(e.InputIDs)
}

// Tokenizer is a lower-casing WordPiece tokenizer
type Tokenizer struct {
	vocab  map[string]int
	tokens []string

	padID int
	unkID int
	clsID int
	sepID int
}

// NewTokenizer builds a tokenizer over tokens, where a token's id is its index
func NewTokenizer(tokens []string) (*Tokenizer, error) {
	t := &Tokenizer{
		vocab:  make(map[string]int, len(tokens)),
		tokens: make([]string, len(tokens)),
	}
	copy(t.tokens, tokens)
	for i, tok := range tokens {
		if _, dup := t.vocab[tok]; !dup {
			t.vocab[tok] = i
		}
	}

	for _, special := range []struct {
		token string
		id    *int
	}{{PadToken, &t.padID}, {UnkToken, &t.unkID}, {ClsToken, &t.clsID}, {SepToken, &t.sepID}} {
		id, ok := t.vocab[special.token]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingSpecialToken, special.token)
		}
		*special.id = id
	}
	return t, nil
}

// LoadVocab reads a vocab.txt file with one token per line
func LoadVocab(path string) (*Tokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary: %w", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens = append(tokens, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vocabulary: %w", err)
	}
	return NewTokenizer(tokens)
}

// SaveVocab writes the vocabulary in the format LoadVocab reads
func (t *Tokenizer) SaveVocab(path string) error {
	return os.WriteFile(path, []byte(strings.Join(t.tokens, "\n")+"\n"), 0o644)
}

// BuildVocab derives a vocabulary of at most size tokens from texts: the
// special tokens, every character seen (as a word start and as a ## piece)
// so no word falls back to [UNK], then whole words by frequency.
func BuildVocab(texts []string, size int) (*Tokenizer, error) {
	wordFreq := make(map[string]int)
	chars := make(map[string]struct{})
	for _, text := range texts {
		for _, word := range preTokenize(text) {
			wordFreq[word]++
			for _, r := range word {
				chars[string(r)] = struct{}{}
			}
		}
	}

	tokens := []string{PadToken, UnkToken, ClsToken, SepToken}
	seen := make(map[string]struct{}, size)
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}
	add := func(tok string) {
		if len(tokens) >= size {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}

	charList := make([]string, 0, len(chars))
	for c := range chars {
		charList = append(charList, c)
	}
	sort.Strings(charList)
	for _, c := range charList {
		add(c)
	}
	for _, c := range charList {
		add(continuationPrefix + c)
	}

	words := make([]string, 0, len(wordFreq))
	for w := range wordFreq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if wordFreq[words[i]] != wordFreq[words[j]] {
			return wordFreq[words[i]] > wordFreq[words[j]]
		}
		return words[i] < words[j]
	})
	for _, w := range words {
		add(w)
	}

	return NewTokenizer(tokens)
}

// VocabSize returns the number of token ids
func (t *Tokenizer) VocabSize() int {
	return len(t.tokens)
}

// PadID returns the id used for padding
func (t *Tokenizer) PadID() int {
	return t.padID
}

// Token returns the token for id, or [UNK] when id is out of range
func (t *Tokenizer) Token(id int) string {
	if id < 0 || id >= len(t.tokens) {
		return UnkToken
	}
	return t.tokens[id]
}

// Tokenize splits text into WordPiece tokens without special tokens
func (t *Tokenizer) Tokenize(text string) []string {
	var out []string
	for _, word := range preTokenize(text) {
		out = append(out, t.wordPiece(word)...)
	}
	return out
}

// Encode tokenizes a batch, wrapping each sequence in [CLS] ... [SEP]
func (t *Tokenizer) Encode(texts []string, opts EncodeOptions) Encoding {
	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	enc := Encoding{
		InputIDs:      make([][]int, len(texts)),
		AttentionMask: make([][]int, len(texts)),
	}
	longest := 0
	for i, text := range texts {
		pieces := t.Tokenize(text)
		if opts.Truncation && len(pieces) > maxLength-2 {
			pieces = pieces[:max(maxLength-2, 0)]
		}

		ids := make([]int, 0, len(pieces)+2)
		ids = append(ids, t.clsID)
		for _, p := range pieces {
			ids = append(ids, t.vocab[p])
		}
		ids = append(ids, t.sepID)

		mask := make([]int, len(ids))
		for j := range mask {
			mask[j] = 1
		}
		enc.InputIDs[i] = ids
		enc.AttentionMask[i] = mask
		longest = max(longest, len(ids))
	}

	if opts.Padding == PadLongest {
		for i := range enc.InputIDs {
			for len(enc.InputIDs[i]) < longest {
				enc.InputIDs[i] = append(enc.InputIDs[i], t.padID)
				enc.AttentionMask[i] = append(enc.AttentionMask[i], 0)
			}
		}
	}
	return enc
}

// wordPiece splits one word by greedy longest-match-first. A word that
// cannot be fully covered becomes a single [UNK].
func (t *Tokenizer) wordPiece(word string) []string {
	runes := []rune(word)
	if len(runes) > maxCharsPerWord {
		return []string{UnkToken}
	}

	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		match := ""
		for end > start {
			candidate := string(runes[start:end])
			if start > 0 {
				candidate = continuationPrefix + candidate
			}
			if _, ok := t.vocab[candidate]; ok {
				match = candidate
				break
			}
			end--
		}
		if match == "" {
			return []string{UnkToken}
		}
		pieces = append(pieces, match)
		start = end
	}
	return pieces
}

// preTokenize normalises text and splits it on whitespace and punctuation,
// keeping each punctuation rune as its own word.
func preTokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))

	var words []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			current.WriteRune(r)
		}
	}
	flush()
	return words
}
