package finetune

import (
	"errors"
	"fmt"
)

// ErrEmptyDataset is returned when training or evaluation has no records
var ErrEmptyDataset = errors.New("dataset is empty")

// Record is one encoded, labelled sequence
type Record struct {
	InputIDs      []int
	AttentionMask []int
	Label         int
}

// Dataset is an indexable source of records for the trainer
type Dataset interface {
	Len() int
	Get(i int) Record
}

// EncodedDataset pairs a batch Encoding with its labels
type EncodedDataset struct {
	encoding Encoding
	labels   []int
}

var _ Dataset = (*EncodedDataset)(nil)

// NewEncodedDataset validates that the encoding and labels line up
func NewEncodedDataset(encoding Encoding, labels []int) (*EncodedDataset, error) {
	if encoding.Len() != len(labels) {
		return nil, fmt.Errorf("encoding has %d sequences but %d labels", encoding.Len(), len(labels))
	}
	if len(encoding.AttentionMask) != encoding.Len() {
		return nil, fmt.Errorf("encoding has %d input rows but %d mask rows", encoding.Len(), len(encoding.AttentionMask))
	}
	return &EncodedDataset{encoding: encoding, labels: labels}, nil
}

// Len implements Dataset
func (d *EncodedDataset) Len() int {
	return len(d.labels)
}

// Get implements Dataset
func (d *EncodedDataset) Get(i int) Record {
	return Record{
		InputIDs:      d.encoding.InputIDs[i],
		AttentionMask: d.encoding.AttentionMask[i],
		Label:         d.labels[i],
	}
}
