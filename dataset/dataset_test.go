package dataset

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

const trainTSV = "train_id\tname\titem_condition_id\tcategory_name\tbrand_name\tprice\tshipping\titem_description\n" +
	"0\tMLB Cincinnati Reds T Shirt\t3\tMen/Tops/T-shirts\t\t10.0\t1\tNo description yet\n" +
	"1\tRazer Keyboard\t3\tElectronics/Computers & Tablets/Components & Parts\tRazer\t52.0\t0\tThis keyboard is in great condition\n" +
	"2\tAVA-VIV Blouse\t1\t\tTarget\t10.0\t1\t\n"

const testTSV = "test_id\tname\titem_condition_id\tcategory_name\tbrand_name\tshipping\titem_description\n" +
	"0\tBreast cancer shirt\t1\tWomen/Tops & Blouses/Blouse\t\t1\tSize small [rm]\n"

func tsv(name, body string) Source {
	return &ReaderSource{Name: name, Reader: strings.NewReader(body)}
}

func TestLoadConcatenatesTrainThenTest(t *testing.T) {
	ds, err := Load(context.Background(), tsv("train", trainTSV), tsv("test", testTSV))
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Split.NTrain())
	assert.Equal(t, 1, ds.Split.NTest())
	assert.Equal(t, 4, ds.Frame.Len())
	assert.Equal(t, FeatureColumns, ds.Frame.Names())
	assert.Equal(t, []string{"0"}, ds.TestIDs)

	name, err := ds.Frame.Column(ColName)
	require.NoError(t, err)
	assert.Equal(t, "Razer Keyboard", name.Values[1])
	assert.Equal(t, "Breast cancer shirt", name.Values[3])

	brand, err := ds.Frame.Column(ColBrand)
	require.NoError(t, err)
	assert.True(t, brand.IsMissing(0))
	assert.False(t, brand.IsMissing(1))
	assert.True(t, brand.IsMissing(3))
	assert.Equal(t, 2, brand.MissingCount())

	cat, err := ds.Frame.Column(ColCategory)
	require.NoError(t, err)
	assert.True(t, cat.IsMissing(2))

	assert.Equal(t, []float64{10, 52, 10}, ds.Price)
	target := ds.Target()
	assert.InDelta(t, math.Log1p(52), target[1], 1e-12)
}

func TestLoadMissingColumnIsSchemaError(t *testing.T) {
	body := strings.Replace(trainTSV, "\tprice", "\tcost", 1)
	_, err := Load(context.Background(), tsv("train", body), tsv("test", testTSV))
	require.Error(t, err)

	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ColPrice, se.Column)
}

func TestLoadRejectsNonPositivePrice(t *testing.T) {
	body := strings.Replace(trainTSV, "\t52.0\t", "\t0\t", 1)
	_, err := Load(context.Background(), tsv("train", body), tsv("test", testTSV))
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Row)
}

func TestLoadRejectsBadShipping(t *testing.T) {
	body := strings.Replace(testTSV, "\t1\tSize", "\tyes\tSize", 1)
	_, err := Load(context.Background(), tsv("train", trainTSV), tsv("test", body))
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ColShipping, se.Column)
}

func TestTSVSourceReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.tsv")
	require.NoError(t, os.WriteFile(path, []byte(trainTSV), 0o600))

	raw, err := NewTSVSource(path).Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, raw.Rows, 3)
	assert.Equal(t, TrainSchema()[0], raw.Header[0])
	assert.True(t, raw.Missing[0][raw.index(ColBrand)])
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	raw, err := tsv("train", trainTSV).Read(ctx)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "listings.db")
	require.NoError(t, WriteSQLite(ctx, path, "train", raw))
	testRaw, err := tsv("test", testTSV).Read(ctx)
	require.NoError(t, err)
	require.NoError(t, WriteSQLite(ctx, path, "test", testRaw))

	ds, err := Load(ctx, NewSQLiteSource(path, "train"), NewSQLiteSource(path, "test"))
	require.NoError(t, err)
	assert.Equal(t, 4, ds.Frame.Len())

	brand, err := ds.Frame.Column(ColBrand)
	require.NoError(t, err)
	assert.True(t, brand.IsMissing(0))
	assert.Equal(t, "Razer", brand.Values[1])
}

func TestSQLiteSourceRejectsOddTableName(t *testing.T) {
	_, err := NewSQLiteSource("x.db", "train; DROP TABLE x").Read(context.Background())
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestFrameSetChecksLength(t *testing.T) {
	f := NewFrame(2)
	err := f.Set(NewColumn("a", []string{"x"}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))

	require.NoError(t, f.Set(NewColumn("a", []string{"x", "y"})))
	require.NoError(t, f.Set(NewColumn("b", []string{"x", "y"})))
	f.Drop("a")
	assert.Equal(t, []string{"b"}, f.Names())

	_, err = f.Column("a")
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestSplitRanges(t *testing.T) {
	s, err := NewSplit(3, 2)
	require.NoError(t, err)
	lo, hi := s.TrainRange()
	assert.Equal(t, [2]int{0, 3}, [2]int{lo, hi})
	lo, hi = s.TestRange()
	assert.Equal(t, [2]int{3, 5}, [2]int{lo, hi})

	_, err = NewSplit(-1, 0)
	assert.Error(t, err)
}
