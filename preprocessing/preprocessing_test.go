package preprocessing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// column builds a column where "" is missing.
func column(name string, values ...string) *dataset.Column {
	c := &dataset.Column{Name: name, Values: values, Valid: make([]bool, len(values))}
	for i, v := range values {
		c.Valid[i] = v != ""
	}
	return c
}

func listingFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f := dataset.NewFrame(4)
	require.NoError(t, f.Set(column(dataset.ColName, "Shirt", "", "Keyboard", "Blouse")))
	require.NoError(t, f.Set(column(dataset.ColBrand, "", "Nike", "Razer", "")))
	require.NoError(t, f.Set(column(dataset.ColCategory, "Men/Tops/T-shirts", "Women", "", "A/B/C/D")))
	require.NoError(t, f.Set(column(dataset.ColDescription, "No description yet", "", "price [rm] only", "nice")))
	require.NoError(t, f.Set(column(dataset.ColCondition, "3", "1", "2", "3")))
	require.NoError(t, f.Set(column(dataset.ColShipping, "1", "0", "1", "0")))
	return f
}

func values(t *testing.T, f *dataset.Frame, name string) []string {
	t.Helper()
	c, err := f.Column(name)
	require.NoError(t, err)
	return c.Values
}

func TestNormalizerFillsEveryColumn(t *testing.T) {
	f := listingFrame(t)
	n := NewNormalizer()
	require.NoError(t, n.Normalize(f))

	for _, name := range []string{dataset.ColName, dataset.ColBrand, dataset.ColCategory, dataset.ColDescription} {
		c, err := f.Column(name)
		require.NoError(t, err)
		assert.Zero(t, c.MissingCount(), name)
	}

	assert.Equal(t, []string{"missing", "Nike", "Razer", "missing"}, values(t, f, dataset.ColBrand))
	assert.Equal(t, "missing/missing/missing", values(t, f, dataset.ColCategory)[2])
	assert.Equal(t, []string{"", "", "price [rm] only", "nice"}, values(t, f, dataset.ColDescription))
	assert.Equal(t, []string{"0", "1", "1", "0"}, values(t, f, ColHasBrand))
	assert.Equal(t, []string{"0", "0", "1", "0"}, values(t, f, ColDescHasPrice))

	assert.Equal(t, []string{"Men", "Women", "missing", "A"}, values(t, f, ColCat1))
	assert.Equal(t, []string{"Tops", "missing", "missing", "B"}, values(t, f, ColCat2))
	assert.Equal(t, []string{"T-shirts", "missing", "missing", "C"}, values(t, f, ColCat3))
}

func TestNormalizerIsIdempotent(t *testing.T) {
	f := listingFrame(t)
	n := NewNormalizer()
	require.NoError(t, n.Normalize(f))
	before := map[string][]string{}
	for _, name := range f.Names() {
		before[name] = append([]string(nil), values(t, f, name)...)
	}
	require.NoError(t, n.Normalize(f))
	for _, name := range f.Names() {
		assert.Equal(t, before[name], values(t, f, name), name)
	}
}

func TestSplitCategory(t *testing.T) {
	n := NewNormalizer()
	tests := []struct {
		path string
		want []string
	}{
		{"a/b/c", []string{"a", "b", "c"}},
		{"a", []string{"a", "missing", "missing"}},
		{"a//c", []string{"a", "missing", "c"}},
		{"a/b/c/d/e", []string{"a", "b", "c"}},
		{"", []string{"missing", "missing", "missing"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, n.SplitCategory(tt.path), tt.path)
	}
}

func TestPlaceholderEqualsAbsentDescription(t *testing.T) {
	n := NewNormalizer()
	assert.Equal(t, n.Description("", false), n.Description("No description yet", true))
	assert.Equal(t, "No description yet.", n.Description("No description yet.", true))
}

func TestComposeText(t *testing.T) {
	f := listingFrame(t)
	require.NoError(t, NewNormalizer().Normalize(f))
	require.NoError(t, ComposeText(f, "/"))
	assert.Equal(t, "Shirt/missing/", values(t, f, ColText)[0])
	assert.Equal(t, "Keyboard/Razer/price [rm] only", values(t, f, ColText)[2])
}

func TestCardinalityReducerBoundary(t *testing.T) {
	// a:3, b:2, c:2, d:1; b is seen before c so b wins the tie.
	f := dataset.NewFrame(9)
	require.NoError(t, f.Set(column("brand", "a", "b", "c", "a", "missing", "b", "c", "a", "d")))

	r := NewCardinalityReducer("brand", 2, "missing")
	vocab, err := r.Reduce(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, vocab.Values())
	assert.True(t, vocab.Contains("b"))
	assert.False(t, vocab.Contains("c"))
	assert.Equal(t, []string{"a", "b", "missing", "a", "missing", "b", "missing", "a", "missing"}, values(t, f, "brand"))
}

func TestCardinalityReducerSplitIndependent(t *testing.T) {
	// rows 0-2 are train, rows 3-5 are test
	f := dataset.NewFrame(6)
	require.NoError(t, f.Set(column("brand", "x", "y", "z", "z", "y", "w")))
	r := NewCardinalityReducer("brand", 2, "missing")
	_, err := r.Reduce(f)
	require.NoError(t, err)

	got := values(t, f, "brand")
	assert.Equal(t, got[1], got[4])
	assert.Equal(t, got[2], got[3])
	assert.LessOrEqual(t, r.Vocabulary().Len(), 2)
}

func TestCardinalityReducerErrors(t *testing.T) {
	f := dataset.NewFrame(1)
	require.NoError(t, f.Set(column("brand", "x")))

	_, err := NewCardinalityReducer("brand", -1, "missing").Fit(f)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	err = NewCardinalityReducer("brand", 1, "missing").Transform(f)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	_, err = NewCardinalityReducer("nope", 1, "missing").Fit(f)
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestLabelBinarizer(t *testing.T) {
	f := dataset.NewFrame(4)
	require.NoError(t, f.Set(column("brand", "nike", "adidas", "razer", "nike")))
	b := NewLabelBinarizer("brand")
	m, err := b.FitTransform(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"adidas", "nike", "razer"}, b.Classes)
	r, c := m.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 1.0, m.At(0, 1))
	assert.Equal(t, 1.0, m.At(1, 0))
	assert.Equal(t, 1.0, m.At(2, 2))
	assert.Equal(t, 4, m.NNZ())
}

func TestLabelBinarizerFewClasses(t *testing.T) {
	f := dataset.NewFrame(3)
	require.NoError(t, f.Set(column("b", "y", "x", "y")))
	b := NewLabelBinarizer("b")
	m, err := b.FitTransform(f)
	require.NoError(t, err)
	_, c := m.Dims()
	assert.Equal(t, 1, c)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 0.0, m.At(1, 0))

	g := dataset.NewFrame(2)
	require.NoError(t, g.Set(column("b", "only", "only")))
	m, err = NewLabelBinarizer("b").FitTransform(g)
	require.NoError(t, err)
	_, c = m.Dims()
	assert.Equal(t, 1, c)
	assert.Equal(t, 0, m.NNZ())
}

func TestDummyEncoderColumnOrder(t *testing.T) {
	f := dataset.NewFrame(3)
	require.NoError(t, f.Set(column("item_condition_id", "10", "2", "1")))
	require.NoError(t, f.Set(column("shipping", "1", "0", "1")))

	d := NewDummyEncoder(
		DummyColumn{Name: "item_condition_id", Kind: OneHot},
		DummyColumn{Name: "shipping", Kind: Passthrough},
	)
	m, err := d.FitTransform(f)
	require.NoError(t, err)

	assert.Equal(t, []string{"shipping", "item_condition_id_1", "item_condition_id_2", "item_condition_id_10"}, d.FeatureNames())
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, 1.0, m.At(0, 0))
	assert.Equal(t, 1.0, m.At(0, 3))
	assert.Equal(t, 1.0, m.At(1, 2))
	assert.Equal(t, 1.0, m.At(2, 1))
}

func TestDummyEncoderRejectsNonNumericPassthrough(t *testing.T) {
	f := dataset.NewFrame(1)
	require.NoError(t, f.Set(column("shipping", "yes")))
	_, err := NewDummyEncoder(DummyColumn{Name: "shipping", Kind: Passthrough}).FitTransform(f)
	var ee *errors.EncodingError
	require.True(t, errors.As(err, &ee))
	assert.True(t, strings.Contains(ee.Error(), "shipping"))
}
