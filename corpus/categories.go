package corpus

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCategory is returned when a category name is not part of a set
var ErrUnknownCategory = errors.New("unknown category")

// Category pairs an upstream category key with the human-readable
// description used as a zero-shot candidate label.
type Category struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// CategorySet is an ordered list of categories. A document's label is the
// index of its category in the set.
type CategorySet []Category

// DefaultCategories is the 4-newsgroup subset the benchmark runs on. The
// names are sorted so label ids match the corpus convention.
func DefaultCategories() CategorySet {
	return CategorySet{
		{Name: "comp.graphics", Description: "computer graphics"},
		{Name: "rec.sport.baseball", Description: "baseball"},
		{Name: "sci.electronics", Description: "science, electronics"},
		{Name: "talk.politics.guns", Description: "politics, guns"},
	}
}

// Names returns the category keys in label order
func (cs CategorySet) Names() []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}

// Descriptions returns the category descriptions in label order
func (cs CategorySet) Descriptions() []string {
	descriptions := make([]string, len(cs))
	for i, c := range cs {
		descriptions[i] = c.Description
	}
	return descriptions
}

// Index returns the label id of the named category
func (cs CategorySet) Index(name string) (int, error) {
	for i, c := range cs {
		if c.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Description returns the description for a label id
func (cs CategorySet) Description(label int) (string, error) {
	if label < 0 || label >= len(cs) {
		return "", fmt.Errorf("label %d out of range for %d categories", label, len(cs))
	}
	return cs[label].Description, nil
}

// DuplicateDescriptions lists descriptions shared by more than one category.
// Anything comparing predictions by description cannot tell those apart.
func (cs CategorySet) DuplicateDescriptions() []string {
	seen := make(map[string]int, len(cs))
	var dups []string
	for _, c := range cs {
		seen[c.Description]++
		if seen[c.Description] == 2 {
			dups = append(dups, c.Description)
		}
	}
	return dups
}

// Validate checks the set is usable for classification. Every category
// needs a description since zero-shot predictions are matched against it.
func (cs CategorySet) Validate() error {
	if len(cs) == 0 {
		return errors.New("category set is empty")
	}
	names := make(map[string]struct{}, len(cs))
	for _, c := range cs {
		if c.Name == "" {
			return errors.New("category name is empty")
		}
		if _, ok := names[c.Name]; ok {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		if strings.TrimSpace(c.Description) == "" {
			return fmt.Errorf("category %q has no description", c.Name)
		}
		names[c.Name] = struct{}{}
	}
	return nil
}
