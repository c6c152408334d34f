package text

import (
	"context"
	"math"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Norm は TF-IDF 行の正規化方法
type Norm string

const (
	NormL2   Norm = "l2"
	NormL1   Norm = "l1"
	NormNone Norm = ""
)

// TfidfVectorizer はscikit-learn互換のTF-IDFベクトライザー
// idf = ln((1+n)/(1+df)) + 1 (smooth_idf=True)、行はL2正規化する
type TfidfVectorizer struct {
	*CountVectorizer

	Norm        Norm
	SublinearTF bool

	idf []float64
}

// NewTfidfVectorizer creates a TF-IDF vectorizer with l2 normalisation.
func NewTfidfVectorizer(opts ...Option) *TfidfVectorizer {
	return &TfidfVectorizer{CountVectorizer: NewCountVectorizer(opts...), Norm: NormL2}
}

// Fit learns the vocabulary and the inverse document frequencies.
func (t *TfidfVectorizer) Fit(ctx context.Context, docs []string) error {
	switch t.Norm {
	case NormL1, NormL2, NormNone:
	default:
		return errors.NewValidationError("norm", "must be l1, l2 or empty", string(t.Norm))
	}
	if err := t.CountVectorizer.Fit(ctx, docs); err != nil {
		return err
	}
	n := float64(t.nDocs)
	t.idf = make([]float64, len(t.docFreq))
	for j, df := range t.docFreq {
		t.idf[j] = math.Log((1+n)/(1+float64(df))) + 1
	}
	return nil
}

// IDF returns the fitted idf weight of each column.
func (t *TfidfVectorizer) IDF() []float64 { return t.idf }

// Transform returns normalised tf-idf rows.
func (t *TfidfVectorizer) Transform(ctx context.Context, docs []string) (*sparse.CSR, error) {
	counts, err := t.CountVectorizer.Transform(ctx, docs)
	if err != nil {
		return nil, err
	}
	rows, cols := counts.Dims()
	b := sparse.NewBuilder(cols)
	b.Grow(counts.NNZ())
	for i := 0; i < rows; i++ {
		idx, val := counts.Row(i)
		out := make([]float64, len(val))
		norm := 0.0
		for k, j := range idx {
			tf := val[k]
			if t.SublinearTF {
				tf = 1 + math.Log(tf)
			}
			out[k] = tf * t.idf[j]
			switch t.Norm {
			case NormL2:
				norm += out[k] * out[k]
			case NormL1:
				norm += math.Abs(out[k])
			}
		}
		if t.Norm == NormL2 {
			norm = math.Sqrt(norm)
		}
		if t.Norm != NormNone && norm > 0 {
			for k := range out {
				out[k] /= norm
			}
		}
		b.AddRow(idx, out)
	}
	return b.Build(), nil
}

var _ model.TextEncoder = (*TfidfVectorizer)(nil)
