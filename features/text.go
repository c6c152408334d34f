// Package features turns a normalised listing frame into the sparse
// design matrix shared by the train and test rows.
package features

import (
	"os"

	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/sklearn/feature_extraction/embedding"
	"github.com/YuminosukeSato/pricecast/sklearn/feature_extraction/text"
)

// Text encoder kinds accepted in TextConfig.Kind.
const (
	KindCount     = "count"
	KindTfidf     = "tfidf"
	KindEmbedding = "embedding"
)

// EmbeddingResources are the external models used by the embedding
// strategy.
type EmbeddingResources struct {
	Annotator embedding.Annotator
	Embedder  embedding.Embedder
	Fallback  []float64
}

// NewEmbeddingResources builds the rule annotator and an embedder: word
// vectors from ec.VectorsPath when set, hashed vectors otherwise.
func NewEmbeddingResources(ec config.EmbeddingConfig) (*EmbeddingResources, error) {
	res := &EmbeddingResources{Annotator: embedding.RuleAnnotator{}}
	if len(ec.Fallback) > 0 {
		res.Fallback = append([]float64(nil), ec.Fallback...)
	}
	if ec.VectorsPath == "" {
		res.Embedder = embedding.NewHashEmbedder(ec.Dim, ec.Seed)
		return res, nil
	}
	f, err := os.Open(ec.VectorsPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open word vectors %s", ec.VectorsPath)
	}
	defer f.Close()
	wv, err := embedding.LoadWordVectors(f)
	if err != nil {
		return nil, errors.Wrapf(err, "load word vectors %s", ec.VectorsPath)
	}
	res.Embedder = wv
	return res, nil
}

// NewTextEncoder selects the encoding strategy for column by tc.Kind.
// res is only consulted for the embedding strategy.
func NewTextEncoder(column string, tc config.TextConfig, ec config.EmbeddingConfig, res *EmbeddingResources) (model.TextEncoder, error) {
	stop, ok := text.StopWordsByName(tc.StopWords)
	if !ok {
		return nil, errors.NewValidationError("stop_words", "unknown stop word list", tc.StopWords)
	}

	switch tc.Kind {
	case KindCount, KindTfidf:
		opts := []text.Option{
			text.WithColumn(column),
			text.WithMinDF(tc.MinDF),
			text.WithMaxFeatures(tc.MaxFeatures),
			text.WithNGramRange(tc.NGramMin, tc.NGramMax),
			text.WithStopWords(stop),
			text.WithBinary(tc.Binary),
		}
		if tc.Kind == KindCount {
			return text.NewCountVectorizer(opts...), nil
		}
		tv := text.NewTfidfVectorizer(opts...)
		tv.SublinearTF = tc.SublinearTF
		switch tc.Norm {
		case "", "l2":
			tv.Norm = text.NormL2
		case "l1":
			tv.Norm = text.NormL1
		case "none":
			tv.Norm = text.NormNone
		default:
			return nil, errors.NewValidationError("norm", "must be l1, l2 or none", tc.Norm)
		}
		return tv, nil

	case KindEmbedding:
		if res == nil {
			return nil, errors.NewValidationError("embedding", "resources are required", column)
		}
		enc := embedding.NewEncoder(res.Annotator, res.Embedder)
		enc.Column = column
		enc.StopWords = stop
		enc.Fallback = res.Fallback
		enc.BatchSize = ec.BatchSize
		enc.Workers = ec.Workers
		return enc, nil
	}
	return nil, errors.NewValidationError("kind", "unknown text encoder", tc.Kind)
}
