package dataset

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// Dataset is the unified listing table plus everything derived from the
// raw tables that later stages need.
type Dataset struct {
	// Frame holds FeatureColumns for train rows followed by test rows.
	Frame *Frame
	// Price is the raw training price, one per train row.
	Price []float64
	// TestIDs preserves the test_id column in row order.
	TestIDs []string
	// Split marks the train/test boundary of Frame.
	Split Split
}

// Target returns log1p(price) for every train row.
func (d *Dataset) Target() []float64 {
	out := make([]float64, len(d.Price))
	for i, p := range d.Price {
		out[i] = math.Log1p(p)
	}
	return out
}

// Load reads both sources, checks their schema, and concatenates train rows
// followed by test rows. The raw tables are released before returning.
func Load(ctx context.Context, train, test Source) (*Dataset, error) {
	logger := log.GetLoggerWithName("dataset")
	start := time.Now()

	rawTrain, err := train.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(rawTrain, TrainSchema()); err != nil {
		return nil, err
	}
	rawTest, err := test.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkHeader(rawTest, TestSchema()); err != nil {
		return nil, err
	}

	split, err := NewSplit(len(rawTrain.Rows), len(rawTest.Rows))
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Frame: NewFrame(split.Total()), Split: split}

	ds.Price, err = parsePrices(rawTrain)
	if err != nil {
		return nil, err
	}
	idIdx := rawTest.index(ColTestID)
	ds.TestIDs = make([]string, len(rawTest.Rows))
	for i, rec := range rawTest.Rows {
		ds.TestIDs[i] = field(rec, idIdx)
	}

	for _, name := range FeatureColumns {
		col := &Column{
			Name:   name,
			Values: make([]string, split.Total()),
			Valid:  make([]bool, split.Total()),
		}
		if err := fillColumn(col, rawTrain, 0); err != nil {
			return nil, err
		}
		if err := fillColumn(col, rawTest, split.NTrain()); err != nil {
			return nil, err
		}
		if err := ds.Frame.Set(col); err != nil {
			return nil, err
		}
	}

	// 元テーブルはここで手放す
	rawTrain, rawTest = nil, nil

	logger.Info("listings loaded",
		"train_rows", split.NTrain(),
		"test_rows", split.NTest(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return ds, nil
}

func checkHeader(t *RawTable, required []string) error {
	for _, name := range required {
		if t.index(name) < 0 {
			return errors.NewSchemaError(t.Source, name, "required column missing")
		}
	}
	return nil
}

func field(rec []string, j int) string {
	if j < len(rec) {
		return rec[j]
	}
	return ""
}

func missing(t *RawTable, i, j int) bool {
	if j >= len(t.Rows[i]) {
		return true
	}
	return t.Missing != nil && t.Missing[i][j]
}

func parsePrices(t *RawTable) ([]float64, error) {
	j := t.index(ColPrice)
	out := make([]float64, len(t.Rows))
	for i, rec := range t.Rows {
		if missing(t, i, j) {
			return nil, errors.NewSchemaRowError(t.Source, ColPrice, i, "price is missing")
		}
		p, err := strconv.ParseFloat(field(rec, j), 64)
		if err != nil {
			return nil, errors.NewSchemaRowError(t.Source, ColPrice, i, "price is not a number")
		}
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= 0 {
			return nil, errors.NewSchemaRowError(t.Source, ColPrice, i, "price must be a positive finite number")
		}
		out[i] = p
	}
	return out, nil
}

// fillColumn copies column col.Name of t into col starting at row offset.
func fillColumn(col *Column, t *RawTable, offset int) error {
	j := t.index(col.Name)
	for i, rec := range t.Rows {
		if missing(t, i, j) {
			if !nullableColumns[col.Name] {
				return errors.NewSchemaRowError(t.Source, col.Name, i, "value is missing")
			}
			continue
		}
		v := field(rec, j)
		if err := checkValue(col.Name, v); err != nil {
			return errors.NewSchemaRowError(t.Source, col.Name, i, err.Error())
		}
		col.Values[offset+i] = v
		col.Valid[offset+i] = true
	}
	return nil
}

func checkValue(name, v string) error {
	switch name {
	case ColCondition:
		if _, err := strconv.Atoi(v); err != nil {
			return errors.Newf("item condition %q is not an integer", v)
		}
	case ColShipping:
		if v != "0" && v != "1" {
			return errors.Newf("shipping flag %q is not 0 or 1", v)
		}
	}
	return nil
}
