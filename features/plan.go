package features

import (
	"context"
	"time"

	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/log"
	"github.com/YuminosukeSato/pricecast/preprocessing"
)

// Block names, in design matrix order for each plan.
const (
	BlockDummies     = "dummies"
	BlockDescription = "description"
	BlockBrand       = "brand"
	BlockCategory    = "category"
	BlockName        = "name"
	BlockText        = "text"
)

// Builder runs the feature plans. The frame passed to a plan is mutated
// in place and must not be used concurrently.
type Builder struct {
	Features  config.FeaturesConfig
	Embedding config.EmbeddingConfig
	Resources *EmbeddingResources

	// OnStage is called after every stage with its elapsed time.
	OnStage func(stage string, elapsed time.Duration)

	vocabularies map[string]*preprocessing.Vocabulary
	logger       log.Logger
}

// NewBuilder creates a builder. res may be nil when no text column uses
// the embedding strategy.
func NewBuilder(fc config.FeaturesConfig, ec config.EmbeddingConfig, res *EmbeddingResources) *Builder {
	return &Builder{
		Features:  fc,
		Embedding: ec,
		Resources: res,
		logger:    log.GetLoggerWithName("features"),
	}
}

// Vocabularies returns the reduced brand and category vocabularies of the
// last Ensemble run, keyed by column.
func (b *Builder) Vocabularies() map[string]*preprocessing.Vocabulary {
	return b.vocabularies
}

func (b *Builder) normalizer() *preprocessing.Normalizer {
	n := preprocessing.NewNormalizer()
	n.BrandSentinel = b.Features.BrandSentinel
	n.CategorySentinel = b.Features.CategorySentinel
	n.CategoryDepth = b.Features.CategoryDepth
	n.DescriptionPlaceholder = b.Features.DescriptionPlaceholder
	n.PriceMarker = b.Features.PriceMarker
	return n
}

func (b *Builder) stage(name string, start time.Time) {
	elapsed := time.Since(start)
	b.logger.Info("stage finished", log.StageKey, name, log.DurationMsKey, elapsed.Milliseconds())
	if b.OnStage != nil {
		b.OnStage(name, elapsed)
	}
}

// Ensemble builds [dummies, description, brand, category, name]:
// missing values are filled, brand and category are cut to their top
// values, name and category are counted, description is TF-IDF weighted,
// brand is label-binarised and condition/shipping are dummy-encoded.
func (b *Builder) Ensemble(ctx context.Context, f *dataset.Frame, split dataset.Split) (*DesignMatrix, error) {
	start := time.Now()
	norm := b.normalizer()
	if err := norm.Normalize(f); err != nil {
		return nil, err
	}
	b.stage("handle_missing", start)

	start = time.Now()
	b.vocabularies = make(map[string]*preprocessing.Vocabulary, 2)
	reducers := []*preprocessing.CardinalityReducer{
		preprocessing.NewCardinalityReducer(dataset.ColBrand, b.Features.NumBrands, norm.BrandSentinel),
		preprocessing.NewCardinalityReducer(dataset.ColCategory, b.Features.NumCategories, norm.SentinelPath()),
	}
	for _, r := range reducers {
		vocab, err := r.Reduce(f)
		if err != nil {
			return nil, err
		}
		b.vocabularies[r.Column] = vocab
	}
	b.stage("cutting", start)

	name, err := b.encodeText(ctx, f, dataset.ColName, b.Features.Name)
	if err != nil {
		return nil, err
	}
	category, err := b.encodeText(ctx, f, dataset.ColCategory, b.Features.Category)
	if err != nil {
		return nil, err
	}
	description, err := b.encodeText(ctx, f, dataset.ColDescription, b.Features.Description)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	brand, err := preprocessing.NewLabelBinarizer(dataset.ColBrand).FitTransform(f)
	if err != nil {
		return nil, err
	}
	b.stage("label_binarize_brand", start)

	start = time.Now()
	dummies, err := preprocessing.NewDummyEncoder(
		preprocessing.DummyColumn{Name: dataset.ColCondition, Kind: preprocessing.OneHot},
		preprocessing.DummyColumn{Name: dataset.ColShipping, Kind: preprocessing.Passthrough},
	).FitTransform(f)
	if err != nil {
		return nil, err
	}
	b.stage("dummies", start)

	start = time.Now()
	dm, err := Assemble(split,
		Block{Name: BlockDummies, Matrix: dummies},
		Block{Name: BlockDescription, Matrix: description},
		Block{Name: BlockBrand, Matrix: brand},
		Block{Name: BlockCategory, Matrix: category},
		Block{Name: BlockName, Matrix: name},
	)
	if err != nil {
		return nil, err
	}
	b.stage("sparse_merge", start)
	return dm, nil
}

// Preprocess builds [dummies, text]: the category path is split into
// levels, has_brand and desc_has_price are derived, name/brand/description
// are joined and embedded, and cat1, cat2 plus the numeric flags are
// dummy-encoded.
func (b *Builder) Preprocess(ctx context.Context, f *dataset.Frame, split dataset.Split) (*DesignMatrix, error) {
	start := time.Now()
	if err := b.normalizer().Normalize(f); err != nil {
		return nil, err
	}
	if err := preprocessing.ComposeText(f, b.Embedding.TextSeparator); err != nil {
		return nil, err
	}
	b.stage("basic_features", start)

	tc := config.TextConfig{Kind: KindEmbedding, StopWords: b.Embedding.StopWords}
	text, err := b.encodeText(ctx, f, preprocessing.ColText, tc)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	cols := []preprocessing.DummyColumn{
		{Name: preprocessing.ColHasBrand, Kind: preprocessing.Passthrough},
		{Name: preprocessing.ColDescHasPrice, Kind: preprocessing.Passthrough},
		{Name: dataset.ColShipping, Kind: preprocessing.Passthrough},
		{Name: dataset.ColCondition, Kind: preprocessing.Passthrough},
	}
	// cat3 は語彙が大きすぎるので使わない
	for d := 0; d < min(2, b.Features.CategoryDepth); d++ {
		cols = append(cols, preprocessing.DummyColumn{Name: preprocessing.CategoryColumns[d], Kind: preprocessing.OneHot})
	}
	dummies, err := preprocessing.NewDummyEncoder(cols...).FitTransform(f)
	if err != nil {
		return nil, err
	}
	b.stage("dummies", start)

	return Assemble(split,
		Block{Name: BlockDummies, Matrix: dummies},
		Block{Name: BlockText, Matrix: text},
	)
}

func (b *Builder) encodeText(ctx context.Context, f *dataset.Frame, column string, tc config.TextConfig) (*sparse.CSR, error) {
	start := time.Now()
	col, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	enc, err := NewTextEncoder(column, tc, b.Embedding, b.Resources)
	if err != nil {
		return nil, err
	}
	X, err := model.FitTransform(ctx, enc, col.Values)
	if err != nil {
		return nil, err
	}
	b.stage(tc.Kind+"_"+column, start)
	return X, nil
}
