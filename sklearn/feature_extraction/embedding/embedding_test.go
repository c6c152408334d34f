package embedding

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

func vectors(t *testing.T) *WordVectors {
	t.Helper()
	wv, err := LoadWordVectors(strings.NewReader("3 2\nshirt 1 0\nred 0 1\nbe 5 5\n"))
	require.NoError(t, err)
	return wv
}

func TestLemmatize(t *testing.T) {
	tests := map[string]string{
		"Shirts":    "shirt",
		"batteries": "battery",
		"dresses":   "dress",
		"glass":     "glass",
		"is":        "be",
		"My":        PronounLemma,
		"it's":      PronounLemma,
		"phone's":   "phone",
		"bus":       "bus",
	}
	for in, want := range tests {
		assert.Equal(t, want, Lemmatize(in), in)
	}
}

func TestTokensDropStopWordsPunctuationAndPronouns(t *testing.T) {
	e := NewEncoder(RuleAnnotator{}, vectors(t))
	toks, err := e.Tokens(context.Background(), "My red Shirts!! are the best :)")
	require.NoError(t, err)
	// "are" lemmatizes to "be", which is a stop word
	assert.Equal(t, []string{"red", "shirt", "best"}, toks)
}

func TestVectorAveragesKnownTokens(t *testing.T) {
	e := NewEncoder(RuleAnnotator{}, vectors(t))
	require.NoError(t, e.Fit(context.Background(), nil))
	v, err := e.Vector(context.Background(), "red shirt unknownword")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, v, 1e-12)
}

func TestVectorFallback(t *testing.T) {
	e := NewEncoder(RuleAnnotator{}, vectors(t))
	require.NoError(t, e.Fit(context.Background(), nil))
	v, err := e.Vector(context.Background(), "the !!")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, v)

	e.Fallback = []float64{-1, -1}
	require.NoError(t, e.Fit(context.Background(), nil))
	v, err = e.Vector(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, -1}, v)

	e.Fallback = []float64{1}
	var de *errors.DimensionError
	assert.True(t, errors.As(e.Fit(context.Background(), nil), &de))
}

func TestTransformIndependentOfBatchSize(t *testing.T) {
	docs := make([]string, 103)
	for i := range docs {
		docs[i] = fmt.Sprintf("item %d red shirt number%d", i, i%7)
	}
	embed := func(batch, workers int) *sparse.CSR {
		e := NewEncoder(RuleAnnotator{}, NewHashEmbedder(8, 666))
		e.BatchSize, e.Workers = batch, workers
		m, err := model.FitTransform(context.Background(), e, docs)
		require.NoError(t, err)
		return m
	}
	ref := embed(1000, 1)
	r, c := ref.Dims()
	assert.Equal(t, 103, r)
	assert.Equal(t, 8, c)
	assert.True(t, sparse.Equal(ref, embed(10, 4)))
	assert.True(t, sparse.Equal(ref, embed(1, 3)))
}

type failingAnnotator struct{ bad string }

func (f failingAnnotator) Annotate(ctx context.Context, doc string) ([]Token, error) {
	if doc == f.bad {
		return nil, errors.New("cannot annotate")
	}
	return RuleAnnotator{}.Annotate(ctx, doc)
}

func TestTransformEncodingError(t *testing.T) {
	e := NewEncoder(failingAnnotator{bad: "boom"}, vectors(t))
	e.Column = "text"
	e.BatchSize = 1
	_, err := model.FitTransform(context.Background(), e, []string{"ok", "boom", "ok"})
	var ee *errors.EncodingError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 1, ee.Row)
	assert.Equal(t, "text", ee.Column)
}

func TestLoadWordVectorsErrors(t *testing.T) {
	_, err := LoadWordVectors(strings.NewReader(""))
	assert.Error(t, err)

	_, err = LoadWordVectors(strings.NewReader("a 1 2\nb 1\n"))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	_, err = LoadWordVectors(strings.NewReader("a 1 x\n"))
	var ee *errors.EncodingError
	assert.True(t, errors.As(err, &ee))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	h := NewHashEmbedder(4, 1)
	a, ok := h.Vector("shirt")
	require.True(t, ok)
	b, _ := h.Vector("shirt")
	c, _ := h.Vector("hat")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
