package features

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/sklearn/feature_extraction/embedding"
	"github.com/YuminosukeSato/pricecast/sklearn/feature_extraction/text"
)

const trainTSV = "train_id\tname\titem_condition_id\tcategory_name\tbrand_name\tprice\tshipping\titem_description\n" +
	"0\tRed Shirt\t3\tMen/Tops/T-shirts\t\t10\t1\tNo description yet\n" +
	"1\tRazer Keyboard\t3\tElectronics/Computers\tRazer\t52\t0\tGreat keyboard in great condition\n" +
	"2\tBlue Blouse\t1\t\tTarget\t10\t1\tSoft [rm] blouse\n"

// テスト行は学習行0と説明文以外同じ (プレースホルダ vs 欠損)
const testTSV = "test_id\tname\titem_condition_id\tcategory_name\tbrand_name\tshipping\titem_description\n" +
	"0\tRed Shirt\t3\tMen/Tops/T-shirts\t\t1\t\n"

func load(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.Load(context.Background(),
		&dataset.ReaderSource{Name: "train", Reader: strings.NewReader(trainTSV)},
		&dataset.ReaderSource{Name: "test", Reader: strings.NewReader(testTSV)},
	)
	require.NoError(t, err)
	return ds
}

func testFeatures() config.FeaturesConfig {
	fc := config.Default().Features
	fc.Name.MinDF = 1
	return fc
}

func testEmbedding() config.EmbeddingConfig {
	ec := config.Default().Embedding
	ec.Dim = 8
	ec.BatchSize = 2
	return ec
}

func rowOf(t *testing.T, X *sparse.CSR, i int) ([]int, []float64) {
	t.Helper()
	idx, val := X.Row(i)
	return append([]int(nil), idx...), append([]float64(nil), val...)
}

func TestAssembleShapeMismatchNamesBlock(t *testing.T) {
	split, err := dataset.NewSplit(2, 1)
	require.NoError(t, err)

	_, err = Assemble(split,
		Block{Name: "ok", Matrix: sparse.Zeros(3, 2)},
		Block{Name: "short", Matrix: sparse.Zeros(2, 4)},
	)
	var sm *errors.ShapeMismatchError
	require.True(t, errors.As(err, &sm))
	assert.Equal(t, "short", sm.Block)
	assert.Equal(t, 3, sm.Expected)
	assert.Equal(t, 2, sm.Got)
}

func TestAssembleSliceRoundTrip(t *testing.T) {
	split, err := dataset.NewSplit(2, 2)
	require.NoError(t, err)
	a := sparse.FromDense(4, 2, []float64{1, 0, 0, 2, 3, 0, 0, 0})
	b := sparse.FromDense(4, 1, []float64{0, 5, 0, 7})

	dm, err := Assemble(split, Block{Name: "a", Matrix: a}, Block{Name: "b", Matrix: b})
	require.NoError(t, err)
	rows, cols := dm.X.Dims()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []BlockInfo{{"a", 0, 2}, {"b", 2, 1}}, dm.Blocks)

	train, err := dm.Train()
	require.NoError(t, err)
	test, err := dm.Test()
	require.NoError(t, err)
	tr, _ := train.Dims()
	te, _ := test.Dims()
	assert.Equal(t, split.Total(), tr+te)

	joined, err := sparse.VStack(train, test)
	require.NoError(t, err)
	assert.True(t, sparse.Equal(dm.X, joined))
	assert.Equal(t, 7.0, dm.X.At(3, 2))
}

func TestEnsemblePlan(t *testing.T) {
	ds := load(t)
	b := NewBuilder(testFeatures(), testEmbedding(), nil)
	var stages []string
	b.OnStage = func(stage string, _ time.Duration) { stages = append(stages, stage) }

	dm, err := b.Ensemble(context.Background(), ds.Frame, ds.Split)
	require.NoError(t, err)

	names := make([]string, len(dm.Blocks))
	for i, info := range dm.Blocks {
		names[i] = info.Name
	}
	assert.Equal(t, []string{BlockDummies, BlockDescription, BlockBrand, BlockCategory, BlockName}, names)

	dummies, _ := dm.Block(BlockDummies)
	// shipping, item_condition_id_1, item_condition_id_3
	assert.Equal(t, 3, dummies.Width)
	brand, _ := dm.Block(BlockBrand)
	assert.Equal(t, 3, brand.Width)
	assert.Contains(t, stages, "cutting")
	assert.Contains(t, stages, "tfidf_item_description")

	rows, _ := dm.X.Dims()
	assert.Equal(t, 4, rows)

	// プレースホルダと欠損は同じ行になる
	i0, v0 := rowOf(t, dm.X, 0)
	i3, v3 := rowOf(t, dm.X, 3)
	assert.Equal(t, i0, i3)
	assert.Equal(t, v0, v3)

	vocab := b.Vocabularies()[dataset.ColBrand]
	require.NotNil(t, vocab)
	assert.Equal(t, 2, vocab.Len())
}

func TestEnsemblePlanDeterministic(t *testing.T) {
	build := func() *sparse.CSR {
		ds := load(t)
		dm, err := NewBuilder(testFeatures(), testEmbedding(), nil).Ensemble(context.Background(), ds.Frame, ds.Split)
		require.NoError(t, err)
		return dm.X
	}
	assert.True(t, sparse.Equal(build(), build()))
}

func TestEnsemblePlanEmptyNameVocabulary(t *testing.T) {
	ds := load(t)
	fc := testFeatures()
	fc.Name.MinDF = 10
	dm, err := NewBuilder(fc, testEmbedding(), nil).Ensemble(context.Background(), ds.Frame, ds.Split)
	require.NoError(t, err)
	name, ok := dm.Block(BlockName)
	require.True(t, ok)
	assert.Equal(t, 0, name.Width)
}

func TestPreprocessPlan(t *testing.T) {
	ds := load(t)
	ec := testEmbedding()
	res, err := NewEmbeddingResources(ec)
	require.NoError(t, err)

	dm, err := NewBuilder(testFeatures(), ec, res).Preprocess(context.Background(), ds.Frame, ds.Split)
	require.NoError(t, err)

	require.Len(t, dm.Blocks, 2)
	assert.Equal(t, BlockDummies, dm.Blocks[0].Name)
	// has_brand, desc_has_price, shipping, item_condition_id + cat1(3) + cat2(3)
	assert.Equal(t, 10, dm.Blocks[0].Width)
	assert.Equal(t, BlockText, dm.Blocks[1].Name)
	assert.Equal(t, 8, dm.Blocks[1].Width)

	// 行2の説明文には [rm] がある
	assert.Equal(t, 1.0, dm.X.At(2, 1))
	assert.Equal(t, 0.0, dm.X.At(0, 1))
	// has_brand
	assert.Equal(t, 1.0, dm.X.At(1, 0))
	assert.Equal(t, 0.0, dm.X.At(0, 0))

	// プレースホルダと欠損は同じ埋め込みになる
	i0, v0 := rowOf(t, dm.X, 0)
	i3, v3 := rowOf(t, dm.X, 3)
	assert.Equal(t, i0, i3)
	assert.Equal(t, v0, v3)
}

func TestPreprocessPlanConfiguredFallback(t *testing.T) {
	// 行0は "It is/none/" なので代名詞とストップワードしか残らない
	train := "train_id\tname\titem_condition_id\tcategory_name\tbrand_name\tprice\tshipping\titem_description\n" +
		"0\tIt is\t3\tMen/Tops\t\t10\t1\tNo description yet\n" +
		"1\tRazer Keyboard\t3\tElectronics/Computers\tRazer\t52\t0\tGreat keyboard\n"
	test := "test_id\tname\titem_condition_id\tcategory_name\tbrand_name\tshipping\titem_description\n" +
		"0\tBlue Blouse\t1\t\tTarget\t1\tSoft blouse\n"
	ds, err := dataset.Load(context.Background(),
		&dataset.ReaderSource{Name: "train", Reader: strings.NewReader(train)},
		&dataset.ReaderSource{Name: "test", Reader: strings.NewReader(test)},
	)
	require.NoError(t, err)

	fc := testFeatures()
	fc.BrandSentinel = "none"
	ec := testEmbedding()
	ec.StopWords = "english"
	ec.Fallback = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}
	res, err := NewEmbeddingResources(ec)
	require.NoError(t, err)
	assert.Equal(t, ec.Fallback, res.Fallback)

	dm, err := NewBuilder(fc, ec, res).Preprocess(context.Background(), ds.Frame, ds.Split)
	require.NoError(t, err)
	text, ok := dm.Block(BlockText)
	require.True(t, ok)
	require.Equal(t, 8, text.Width)
	for k, want := range ec.Fallback {
		assert.InDelta(t, want, dm.X.At(0, text.Offset+k), 1e-12)
	}
	assert.NotEqual(t, ec.Fallback[0], dm.X.At(1, text.Offset))
}

func TestNewTextEncoder(t *testing.T) {
	ec := testEmbedding()
	res, err := NewEmbeddingResources(ec)
	require.NoError(t, err)

	enc, err := NewTextEncoder("name", config.TextConfig{Kind: KindCount, MinDF: 1, NGramMin: 1, NGramMax: 1}, ec, nil)
	require.NoError(t, err)
	assert.IsType(t, &text.CountVectorizer{}, enc)

	enc, err = NewTextEncoder("d", config.TextConfig{Kind: KindTfidf, MinDF: 1, NGramMin: 1, NGramMax: 2, Norm: "none"}, ec, nil)
	require.NoError(t, err)
	tv, ok := enc.(*text.TfidfVectorizer)
	require.True(t, ok)
	assert.Equal(t, text.NormNone, tv.Norm)

	enc, err = NewTextEncoder("t", config.TextConfig{Kind: KindEmbedding}, ec, res)
	require.NoError(t, err)
	emb, ok := enc.(*embedding.Encoder)
	require.True(t, ok)
	assert.Equal(t, 2, emb.BatchSize)

	_, err = NewTextEncoder("t", config.TextConfig{Kind: KindEmbedding}, ec, nil)
	assert.Error(t, err)
	_, err = NewTextEncoder("t", config.TextConfig{Kind: "bert"}, ec, res)
	assert.Error(t, err)
	_, err = NewTextEncoder("t", config.TextConfig{Kind: KindCount, StopWords: "german"}, ec, res)
	assert.Error(t, err)
}
