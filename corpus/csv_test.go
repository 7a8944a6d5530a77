package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestCSVSource_Fetch(t *testing.T) {
	path := writeCSV(t, "subset,category,text\n"+
		"train,rec.sport.baseball,pitcher\n"+
		"train,comp.graphics,pixels\n"+
		"test,sci.electronics,diode\n"+
		"train,alt.atheism,skipped\n")
	source := NewCSVSource(path, false, nil)

	train, err := source.Fetch(context.Background(), DefaultCategories(), SubsetTrain, FetchOptions{Strip: StripAll})
	require.NoError(t, err)
	assert.Equal(t, []Document{{"pitcher", 1}, {"pixels", 0}}, train)

	test, err := source.Fetch(context.Background(), DefaultCategories(), SubsetTest, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []Document{{"diode", 2}}, test)
}

func TestCSVSource_StripMetadata(t *testing.T) {
	path := writeCSV(t, "text,category,subset\n\"Subject: x\n\nbody\",comp.graphics,train\n")
	source := NewCSVSource(path, true, nil)

	docs, err := source.Fetch(context.Background(), DefaultCategories(), SubsetTrain, FetchOptions{Strip: StripAll})
	require.NoError(t, err)
	assert.Equal(t, []Document{{"body", 0}}, docs)
}

func TestCSVSource_Errors(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "missing.csv"), false, nil).
		Fetch(context.Background(), DefaultCategories(), SubsetTrain, FetchOptions{})
	assert.Error(t, err)

	path := writeCSV(t, "text,label\nhello,0\n")
	_, err = NewCSVSource(path, false, nil).Fetch(context.Background(), DefaultCategories(), SubsetTrain, FetchOptions{})
	assert.ErrorContains(t, err, "category")
}
