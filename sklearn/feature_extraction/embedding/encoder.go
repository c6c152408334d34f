package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/parallel"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
	"github.com/YuminosukeSato/pricecast/sklearn/feature_extraction/text"
)

// punctuation は Python の string.punctuation と同じ並び
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// Encoder averages token vectors per document.
//
// トークンは見出し語を小文字化・trimし、代名詞・ストップワード・記号を除く。
// 埋め込みを持たないトークンは平均から除外し、残るトークンが無い文書には
// Fallback (既定はゼロベクトル) を使う。
type Encoder struct {
	model.BaseEstimator

	Column    string
	Annotator Annotator
	Embedder  Embedder
	StopWords text.StopWords
	Fallback  []float64
	BatchSize int
	Workers   int
}

// NewEncoder creates an encoder with the English stop list, batch size 500
// and 4 workers.
func NewEncoder(annotator Annotator, embedder Embedder) *Encoder {
	return &Encoder{
		Annotator: annotator,
		Embedder:  embedder,
		StopWords: text.EnglishStopWords(),
		BatchSize: 500,
		Workers:   4,
	}
}

// Fit checks the configuration. The encoder has no corpus-dependent
// state; Fit exists so both text strategies share one contract.
func (e *Encoder) Fit(_ context.Context, docs []string) error {
	if e.Annotator == nil || e.Embedder == nil {
		return errors.NewValidationError("embedding", "annotator and embedder are required", nil)
	}
	if e.Embedder.Dim() <= 0 {
		return errors.NewValidationError("dim", "must be positive", e.Embedder.Dim())
	}
	if e.Fallback != nil && len(e.Fallback) != e.Embedder.Dim() {
		return errors.NewDimensionError("Encoder.Fit(fallback)", e.Embedder.Dim(), len(e.Fallback), 1)
	}
	e.SetNFeatures(e.Embedder.Dim())
	e.SetFitted()
	return nil
}

// NumFeatures returns the embedding dimension.
func (e *Encoder) NumFeatures() int { return e.NFeatures() }

// Tokens returns the retained lemmas of doc.
func (e *Encoder) Tokens(ctx context.Context, doc string) ([]string, error) {
	toks, err := e.Annotator.Annotate(ctx, doc)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(toks))
	for _, t := range toks {
		if t.Lemma == PronounLemma {
			continue
		}
		lemma := strings.TrimSpace(strings.ToLower(t.Lemma))
		// string.punctuation への部分文字列判定なので空文字も除外される
		if e.StopWords.Contains(lemma) || strings.Contains(punctuation, lemma) {
			continue
		}
		out = append(out, lemma)
	}
	return out, nil
}

// Vector returns the averaged embedding of doc.
func (e *Encoder) Vector(ctx context.Context, doc string) ([]float64, error) {
	tokens, err := e.Tokens(ctx, doc)
	if err != nil {
		return nil, err
	}
	dim := e.Embedder.Dim()
	sum := make([]float64, dim)
	n := 0
	for _, tok := range tokens {
		v, ok := e.Embedder.Vector(tok)
		if !ok {
			continue
		}
		for k := range sum {
			sum[k] += v[k]
		}
		n++
	}
	if n == 0 {
		if e.Fallback != nil {
			copy(sum, e.Fallback)
		}
		return sum, nil
	}
	// 分母はベクトルを持つトークン数 (ベクトルのないトークンは数えない)
	for k := range sum {
		sum[k] /= float64(n)
	}
	return sum, nil
}

// Transform encodes docs in batches. Row i always corresponds to docs[i]
// whatever the batch size or worker count.
func (e *Encoder) Transform(ctx context.Context, docs []string) (*sparse.CSR, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("embedding.Encoder", "Transform")
	}
	start := time.Now()
	rows := make([][]float64, len(docs))
	err := parallel.Batches(ctx, len(docs), e.BatchSize, e.Workers, func(ctx context.Context, lo, hi int) error {
		for i := lo; i < hi; i++ {
			v, err := e.Vector(ctx, docs[i])
			if err != nil {
				return errors.NewEncodingError("embedding", e.Column, i, err)
			}
			rows[i] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	b := sparse.NewBuilder(e.NumFeatures())
	b.Grow(len(docs) * e.NumFeatures())
	for _, r := range rows {
		b.AddDenseRow(r)
	}
	log.GetLoggerWithName("embedding").Debug("documents embedded",
		log.ColumnKey, e.Column,
		log.SamplesKey, len(docs),
		log.FeaturesKey, e.NumFeatures(),
		log.BatchSizeKey, e.BatchSize,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return b.Build(), nil
}

var _ model.TextEncoder = (*Encoder)(nil)
