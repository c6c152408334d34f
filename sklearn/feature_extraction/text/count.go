package text

import (
	"context"
	"sort"
	"time"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/parallel"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// transformBatch は Transform を並列化する文書数の単位
const transformBatch = 2048

// CountVectorizer はscikit-learn互換の単語出現回数ベクトライザー
//
// 使用例:
//
//	cv := text.NewCountVectorizer(text.WithMinDF(10))
//	X, err := model.FitTransform(ctx, cv, names)
type CountVectorizer struct {
	model.BaseEstimator

	// Column はログとエラーに使う列名
	Column string
	// MinDF 未満の文書にしか現れない語は捨てる
	MinDF int
	// MaxFeatures > 0 のとき、コーパス全体の出現回数上位だけを残す
	MaxFeatures int
	// Binary なら出現回数ではなく0/1を出力する
	Binary bool

	Analyzer Analyzer

	vocabulary map[string]int
	terms      []string
	docFreq    []int
	nDocs      int
}

// Option configures a CountVectorizer or TfidfVectorizer.
type Option func(*CountVectorizer)

// WithColumn names the encoded column in logs and errors.
func WithColumn(name string) Option { return func(c *CountVectorizer) { c.Column = name } }

// WithMinDF sets the minimum document frequency.
func WithMinDF(n int) Option { return func(c *CountVectorizer) { c.MinDF = n } }

// WithMaxFeatures caps the vocabulary size.
func WithMaxFeatures(n int) Option { return func(c *CountVectorizer) { c.MaxFeatures = n } }

// WithNGramRange sets the inclusive n-gram range.
func WithNGramRange(lo, hi int) Option {
	return func(c *CountVectorizer) { c.Analyzer.NGramMin, c.Analyzer.NGramMax = lo, hi }
}

// WithStopWords removes words before n-gram generation.
func WithStopWords(s StopWords) Option { return func(c *CountVectorizer) { c.Analyzer.StopWords = s } }

// WithBinary emits presence indicators instead of counts.
func WithBinary(b bool) Option { return func(c *CountVectorizer) { c.Binary = b } }

// NewCountVectorizer creates a vectorizer with unigram, lowercase,
// min_df=1 defaults.
func NewCountVectorizer(opts ...Option) *CountVectorizer {
	c := &CountVectorizer{
		MinDF:    1,
		Analyzer: Analyzer{Lowercase: true, NGramMin: 1, NGramMax: 1},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *CountVectorizer) validate() error {
	if c.MinDF < 1 {
		return errors.NewValidationError("min_df", "must be at least 1", c.MinDF)
	}
	if c.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be non-negative", c.MaxFeatures)
	}
	if c.Analyzer.NGramMin < 1 || c.Analyzer.NGramMax < c.Analyzer.NGramMin {
		return errors.NewValidationError("ngram_range", "must satisfy 1 <= min <= max",
			[2]int{c.Analyzer.NGramMin, c.Analyzer.NGramMax})
	}
	return nil
}

// Fit learns the vocabulary from docs. An empty vocabulary is reported as
// a warning and yields a zero-column encoder.
func (c *CountVectorizer) Fit(ctx context.Context, docs []string) error {
	if err := c.validate(); err != nil {
		return err
	}
	start := time.Now()

	df := make(map[string]int)
	tf := make(map[string]int)
	seen := make(map[string]struct{})
	for i, doc := range docs {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		clear(seen)
		for _, term := range c.Analyzer.Analyze(doc) {
			tf[term]++
			if _, ok := seen[term]; !ok {
				seen[term] = struct{}{}
				df[term]++
			}
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= c.MinDF {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)
	if c.MaxFeatures > 0 && len(terms) > c.MaxFeatures {
		// 出現回数の多い順、同数はアルファベット順
		sort.SliceStable(terms, func(a, b int) bool { return tf[terms[a]] > tf[terms[b]] })
		terms = terms[:c.MaxFeatures]
		sort.Strings(terms)
	}

	c.terms = terms
	c.nDocs = len(docs)
	c.vocabulary = make(map[string]int, len(terms))
	c.docFreq = make([]int, len(terms))
	for j, term := range terms {
		c.vocabulary[term] = j
		c.docFreq[j] = df[term]
	}
	if len(terms) == 0 {
		errors.Warn(&errors.EmptyVocabularyWarning{
			Encoder: "CountVectorizer", Column: c.Column, MinDF: c.MinDF, Docs: len(docs),
		})
	}
	c.SetNFeatures(len(terms))
	c.SetFitted()

	log.GetLoggerWithName("text").Debug("vocabulary fitted",
		log.ColumnKey, c.Column,
		log.VocabularyKey, len(terms),
		log.SamplesKey, len(docs),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// Transform returns the document-term count matrix, one row per document.
func (c *CountVectorizer) Transform(ctx context.Context, docs []string) (*sparse.CSR, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("CountVectorizer", "Transform")
	}
	rowsIdx := make([][]int, len(docs))
	rowsVal := make([][]float64, len(docs))
	err := parallel.Batches(ctx, len(docs), transformBatch, 0, func(_ context.Context, lo, hi int) error {
		counts := make(map[int]float64)
		for i := lo; i < hi; i++ {
			clear(counts)
			for _, term := range c.Analyzer.Analyze(docs[i]) {
				if j, ok := c.vocabulary[term]; ok {
					counts[j]++
				}
			}
			idx := make([]int, 0, len(counts))
			for j := range counts {
				idx = append(idx, j)
			}
			sort.Ints(idx)
			val := make([]float64, len(idx))
			for k, j := range idx {
				val[k] = counts[j]
				if c.Binary {
					val[k] = 1
				}
			}
			rowsIdx[i], rowsVal[i] = idx, val
		}
		return nil
	})
	if err != nil {
		return nil, errors.NewEncodingError("CountVectorizer.Transform", c.Column, -1, err)
	}

	b := sparse.NewBuilder(len(c.terms))
	for i := range docs {
		b.AddRow(rowsIdx[i], rowsVal[i])
	}
	return b.Build(), nil
}

// NumFeatures returns the vocabulary size.
func (c *CountVectorizer) NumFeatures() int { return len(c.terms) }

// Vocabulary returns the term → column mapping.
func (c *CountVectorizer) Vocabulary() map[string]int { return c.vocabulary }

// FeatureNames returns terms in column order.
func (c *CountVectorizer) FeatureNames() []string { return append([]string(nil), c.terms...) }

// DocumentFrequency returns the number of fitted documents containing each
// term, in column order.
func (c *CountVectorizer) DocumentFrequency() []int { return c.docFreq }

var _ model.TextEncoder = (*CountVectorizer)(nil)
