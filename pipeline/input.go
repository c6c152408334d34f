package pipeline

import (
	"github.com/YuminosukeSato/pricecast/config"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Sources returns the train and test sources described by ic.
func Sources(ic config.InputConfig) (train, test dataset.Source, err error) {
	switch ic.Format {
	case "", "tsv":
		tr := dataset.NewTSVSource(ic.TrainPath)
		tr.NullValues = ic.NullValues
		te := dataset.NewTSVSource(ic.TestPath)
		te.NullValues = ic.NullValues
		return tr, te, nil
	case "sqlite":
		return dataset.NewSQLiteSource(ic.SQLitePath, ic.TrainTable),
			dataset.NewSQLiteSource(ic.SQLitePath, ic.TestTable), nil
	default:
		return nil, nil, errors.NewValidationError("input.format", "oneof=tsv sqlite", ic.Format)
	}
}
