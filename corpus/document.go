package corpus

// Subset names one of the upstream partitions
type Subset string

const (
	SubsetTrain Subset = "train"
	SubsetTest  Subset = "test"
)

// Document is one labeled text
type Document struct {
	Text  string
	Label int
}

// Split holds index-aligned texts and labels in upstream order
type Split struct {
	Texts  []string
	Labels []int
}

// Corpus is the train/test pair handed to a strategy
type Corpus struct {
	Train Split
	Test  Split
}

// NewSplit builds a split from documents, preserving their order
func NewSplit(docs []Document) Split {
	split := Split{
		Texts:  make([]string, len(docs)),
		Labels: make([]int, len(docs)),
	}
	for i, doc := range docs {
		split.Texts[i] = doc.Text
		split.Labels[i] = doc.Label
	}
	return split
}

// Len returns the number of documents in the split
func (s Split) Len() int {
	return len(s.Labels)
}

// Documents returns the split as a slice of documents
func (s Split) Documents() []Document {
	docs := make([]Document, s.Len())
	for i := range docs {
		docs[i] = Document{Text: s.Texts[i], Label: s.Labels[i]}
	}
	return docs
}

// LabelCounts returns how many documents carry each label
func (s Split) LabelCounts() map[int]int {
	counts := make(map[int]int)
	for _, label := range s.Labels {
		counts[label]++
	}
	return counts
}
