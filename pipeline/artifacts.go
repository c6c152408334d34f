package pipeline

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/ensemble"
	"github.com/YuminosukeSato/pricecast/features"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/sklearn/lightgbm"
)

// Artifact file names inside the artifact directory.
const (
	TrainMatrixFile    = "train_x.mtx"
	TestMatrixFile     = "test_x.mtx"
	TrainTargetFile    = "train_y.json"
	ManifestFileSuffix = "_manifest.json"
)

// Manifest describes one run and the files it produced.
type Manifest struct {
	RunID        string                      `json:"run_id"`
	Flow         string                      `json:"flow"`
	CreatedAt    time.Time                   `json:"created_at"`
	TrainRows    int                         `json:"train_rows"`
	TestRows     int                         `json:"test_rows"`
	Features     int                         `json:"features"`
	Blocks       []features.BlockInfo        `json:"blocks"`
	Vocabularies map[string]int              `json:"vocabularies,omitempty"`
	Members      []ensemble.MemberResult     `json:"members,omitempty"`
	Boosters     map[string]lightgbm.Summary `json:"boosters,omitempty"`
	Files        map[string]string           `json:"files"`
}

// WriteSubmission writes the test_id,price CSV. ids and prices are
// aligned by test row.
func WriteSubmission(path string, ids []string, prices []float64) (err error) {
	if len(ids) != len(prices) {
		return errors.NewDimensionError("WriteSubmission", len(ids), len(prices), 0)
	}
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create submission %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close submission %s", path)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"test_id", "price"}); err != nil {
		return errors.Wrap(err, "write submission header")
	}
	for i, id := range ids {
		if err := w.Write([]string{id, strconv.FormatFloat(prices[i], 'f', -1, 64)}); err != nil {
			return errors.Wrapf(err, "write submission row %d", i)
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush submission")
}

// WriteMatrix writes m to path in Matrix Market format.
func WriteMatrix(path string, m *sparse.CSR, comment ...string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create matrix %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close matrix %s", path)
		}
	}()
	return sparse.WriteMatrixMarket(f, m, comment...)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "decode manifest %s", path)
	}
	return &m, nil
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}
	return nil
}
