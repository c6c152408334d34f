package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/features"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

const trainTSV = "train_id\tname\titem_condition_id\tcategory_name\tbrand_name\tprice\tshipping\titem_description\n" +
	"0\tRed Shirt\t3\tMen/Tops/T-shirts\t\t10\t1\tNo description yet\n" +
	"1\tRazer Keyboard\t3\tElectronics/Computers\tRazer\t20\t0\tGreat keyboard in great condition\n" +
	"2\tBlue Blouse\t1\t\tTarget\t40\t1\tSoft [rm] blouse\n"

const testTSV = "test_id\tname\titem_condition_id\tcategory_name\tbrand_name\tshipping\titem_description\n" +
	"7\tRed Shirt\t3\tMen/Tops/T-shirts\t\t1\t\n"

func writeInputs(t *testing.T, dir string) (string, string) {
	t.Helper()
	train := filepath.Join(dir, "train.tsv")
	test := filepath.Join(dir, "test.tsv")
	require.NoError(t, os.WriteFile(train, []byte(trainTSV), 0o644))
	require.NoError(t, os.WriteFile(test, []byte(testTSV), 0o644))
	return train, test
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Input.TrainPath, cfg.Input.TestPath = writeInputs(t, dir)
	cfg.Output.Submission = filepath.Join(dir, "out", "submission.csv")
	cfg.Output.ArtifactDir = filepath.Join(dir, "artifacts")
	cfg.Output.PlotDir = filepath.Join(dir, "plots")
	cfg.Output.MetricsFile = filepath.Join(dir, "metrics", "pricecast.prom")
	cfg.Embedding.Dim = 8
	cfg.Embedding.BatchSize = 2
	for i := range cfg.Models.Members {
		m := &cfg.Models.Members[i]
		if m.Kind == "lgbm" {
			m.NumIterations = 20
			m.EarlyStoppingRounds = 5
			m.VerboseEval = 0
		}
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunEnsembleWritesSubmission(t *testing.T) {
	cfg := testConfig(t)
	r := NewRunner(cfg)

	manifest, err := r.RunEnsemble(context.Background())
	require.NoError(t, err)

	f, err := os.Open(cfg.Output.Submission)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"test_id", "price"}, records[0])
	assert.Equal(t, "7", records[1][0])
	price, err := strconv.ParseFloat(records[1][1], 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, price, 0.0)

	assert.Equal(t, r.RunID(), manifest.RunID)
	assert.Equal(t, 3, manifest.TrainRows)
	assert.Equal(t, 1, manifest.TestRows)
	require.Len(t, manifest.Blocks, 5)
	assert.Equal(t, features.BlockDummies, manifest.Blocks[0].Name)
	assert.Equal(t, features.BlockName, manifest.Blocks[4].Name)
	require.Len(t, manifest.Members, 5)
	assert.Contains(t, manifest.Boosters, "lgbm_1")
	assert.Contains(t, manifest.Vocabularies, dataset.ColBrand)

	// 学習曲線はブースティングのメンバーだけ
	assert.FileExists(t, filepath.Join(cfg.Output.PlotDir, "lgbm_1_learning_curve.png"))
	assert.NoFileExists(t, filepath.Join(cfg.Output.PlotDir, "ridge_sag_learning_curve.png"))

	loaded, err := ReadManifest(filepath.Join(cfg.Output.ArtifactDir, FlowEnsemble+ManifestFileSuffix))
	require.NoError(t, err)
	assert.Equal(t, manifest.RunID, loaded.RunID)
	assert.Equal(t, manifest.Features, loaded.Features)
	require.Len(t, loaded.Members, 5)
	for i, m := range loaded.Members {
		assert.Equal(t, manifest.Members[i].TrainRMSLE, m.TrainRMSLE, m.Name)
		assert.GreaterOrEqual(t, m.TrainRMSLE, 0.0, m.Name)
	}
	raw, err := os.ReadFile(filepath.Join(cfg.Output.ArtifactDir, FlowEnsemble+ManifestFileSuffix))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"train_rmsle"`)
}

func TestRunEnsembleMetrics(t *testing.T) {
	cfg := testConfig(t)
	r := NewRunner(cfg)
	_, err := r.RunEnsemble(context.Background())
	require.NoError(t, err)

	m := r.Metrics()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.MatrixDims.WithLabelValues("train", "rows")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MatrixDims.WithLabelValues("test", "rows")))
	assert.Equal(t, 5, testutil.CollectAndCount(m.MemberRMSE))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccess), 0.0)

	b, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	text := string(b)
	assert.Contains(t, text, "pricecast_member_train_rmse")
	assert.Contains(t, text, `stage="sparse_merge"`)
	assert.Contains(t, text, `flow="ensemble"`)
}

func TestRunPreprocessFromSQLite(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	db := filepath.Join(t.TempDir(), "listings.db")
	for table, path := range map[string]string{"train": cfg.Input.TrainPath, "test": cfg.Input.TestPath} {
		raw, err := dataset.NewTSVSource(path).Read(ctx)
		require.NoError(t, err)
		require.NoError(t, dataset.WriteSQLite(ctx, db, table, raw))
	}
	cfg.Input = config.InputConfig{Format: "sqlite", SQLitePath: db, TrainTable: "train", TestTable: "test"}
	require.NoError(t, cfg.Validate())

	manifest, err := NewRunner(cfg).RunPreprocess(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlowPreprocess, manifest.Flow)
	require.Len(t, manifest.Blocks, 2)
	assert.Equal(t, features.BlockText, manifest.Blocks[1].Name)
	assert.Equal(t, cfg.Embedding.Dim, manifest.Blocks[1].Width)

	f, err := os.Open(manifest.Files["train_x"])
	require.NoError(t, err)
	defer f.Close()
	X, err := sparse.ReadMatrixMarket(f)
	require.NoError(t, err)
	rows, cols := X.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, manifest.Features, cols)

	b, err := os.ReadFile(manifest.Files["train_y"])
	require.NoError(t, err)
	assert.JSONEq(t, "[10,20,40]", string(b))
}

func TestRunEnsembleMissingInput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.TrainPath = filepath.Join(t.TempDir(), "absent.tsv")

	_, err := NewRunner(cfg).RunEnsemble(context.Background())
	require.Error(t, err)
	assert.NoFileExists(t, cfg.Output.Submission)
}

func TestWriteSubmissionLengthMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.csv")
	err := WriteSubmission(path, []string{"0", "1"}, []float64{1})
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
	assert.NoFileExists(t, path)
}

func TestSources(t *testing.T) {
	train, test, err := Sources(config.InputConfig{Format: "tsv", TrainPath: "a.tsv", TestPath: "b.tsv", NullValues: []string{"", "NA"}})
	require.NoError(t, err)
	assert.Equal(t, "a.tsv", train.String())
	assert.Equal(t, []string{"", "NA"}, test.(*dataset.TSVSource).NullValues)

	train, _, err = Sources(config.InputConfig{Format: "sqlite", SQLitePath: "x.db", TrainTable: "train", TestTable: "test"})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(train.String(), "#train"))

	_, _, err = Sources(config.InputConfig{Format: "parquet"})
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}
