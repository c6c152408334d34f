package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/pricecast/core/model"
	"github.com/YuminosukeSato/pricecast/core/sparse"
	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// sortCategories sorts values numerically when every value parses as a
// number, lexicographically otherwise.
func sortCategories(values []string) {
	nums := make(map[string]float64, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			sort.Strings(values)
			return
		}
		nums[v] = f
	}
	sort.Slice(values, func(a, b int) bool { return nums[values[a]] < nums[values[b]] })
}

func distinct(col *dataset.Column) []string {
	seen := make(map[string]struct{})
	var out []string
	for i, v := range col.Values {
		if col.IsMissing(i) {
			continue
		}
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// LabelBinarizer はscikit-learn互換のラベル二値化器
// 1列の多値カテゴリを1クラス1列の疎行列に変換する。
// クラスが2つの場合は1列 (classes[1] が1)、1つの場合は全て0の1列になる。
type LabelBinarizer struct {
	model.BaseEstimator

	Column  string
	Classes []string

	index map[string]int
}

// NewLabelBinarizer creates a binarizer for column.
func NewLabelBinarizer(column string) *LabelBinarizer {
	return &LabelBinarizer{Column: column}
}

// Fit learns the sorted set of classes of the column.
func (b *LabelBinarizer) Fit(f *dataset.Frame) error {
	col, err := f.Column(b.Column)
	if err != nil {
		return err
	}
	b.Classes = distinct(col)
	sortCategories(b.Classes)
	b.index = make(map[string]int, len(b.Classes))
	for i, c := range b.Classes {
		b.index[c] = i
	}
	b.SetNFeatures(b.NumFeatures())
	b.SetFitted()
	return nil
}

// NumFeatures returns the output column count.
func (b *LabelBinarizer) NumFeatures() int {
	if len(b.Classes) <= 2 {
		return 1
	}
	return len(b.Classes)
}

// Transform encodes the column. Unknown values produce an all-zero row.
func (b *LabelBinarizer) Transform(f *dataset.Frame) (*sparse.CSR, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("LabelBinarizer", "Transform")
	}
	col, err := f.Column(b.Column)
	if err != nil {
		return nil, err
	}
	out := sparse.NewBuilder(b.NumFeatures())
	out.Grow(col.Len())
	for i, v := range col.Values {
		k, ok := b.index[v]
		switch {
		case col.IsMissing(i) || !ok:
			out.AddRow(nil, nil)
		case len(b.Classes) == 1:
			out.AddRow(nil, nil)
		case len(b.Classes) == 2:
			if k == 1 {
				out.AddRow([]int{0}, []float64{1})
			} else {
				out.AddRow(nil, nil)
			}
		default:
			out.AddRow([]int{k}, []float64{1})
		}
	}
	return out.Build(), nil
}

// FitTransform fits and transforms the same frame.
func (b *LabelBinarizer) FitTransform(f *dataset.Frame) (*sparse.CSR, error) {
	if err := b.Fit(f); err != nil {
		return nil, err
	}
	return b.Transform(f)
}

// DummyKind selects how DummyEncoder treats a column.
type DummyKind int

const (
	// Passthrough parses the column as a number and copies it.
	Passthrough DummyKind = iota
	// OneHot expands the column to one indicator column per category.
	OneHot
)

// DummyColumn is one input column of DummyEncoder.
type DummyColumn struct {
	Name string
	Kind DummyKind
}

// DummyEncoder は pandas.get_dummies と同じ列順の疎行列を作る。
// Passthrough列が入力順で先頭に並び、続いて各OneHot列のカテゴリ列が
// カテゴリのソート順で並ぶ。
type DummyEncoder struct {
	model.BaseEstimator

	Columns []DummyColumn

	categories   map[string][]string
	index        map[string]map[string]int
	featureNames []string
}

// NewDummyEncoder creates an encoder over columns.
func NewDummyEncoder(columns ...DummyColumn) *DummyEncoder {
	return &DummyEncoder{Columns: columns}
}

// Fit learns the categories of every OneHot column.
func (d *DummyEncoder) Fit(f *dataset.Frame) error {
	d.categories = make(map[string][]string)
	d.index = make(map[string]map[string]int)
	d.featureNames = d.featureNames[:0]

	for _, c := range d.Columns {
		if c.Kind != Passthrough {
			continue
		}
		if _, err := f.Column(c.Name); err != nil {
			return err
		}
		d.featureNames = append(d.featureNames, c.Name)
	}
	for _, c := range d.Columns {
		if c.Kind != OneHot {
			continue
		}
		col, err := f.Column(c.Name)
		if err != nil {
			return err
		}
		cats := distinct(col)
		sortCategories(cats)
		idx := make(map[string]int, len(cats))
		for i, v := range cats {
			idx[v] = len(d.featureNames) + i
		}
		for _, v := range cats {
			d.featureNames = append(d.featureNames, c.Name+"_"+v)
		}
		d.categories[c.Name] = cats
		d.index[c.Name] = idx
	}
	d.SetNFeatures(len(d.featureNames))
	d.SetFitted()
	return nil
}

// FeatureNames returns output column names in order.
func (d *DummyEncoder) FeatureNames() []string {
	return append([]string(nil), d.featureNames...)
}

// Transform encodes f. Passthrough values that are not numbers are an
// EncodingError.
func (d *DummyEncoder) Transform(f *dataset.Frame) (*sparse.CSR, error) {
	if !d.IsFitted() {
		return nil, errors.NewNotFittedError("DummyEncoder", "Transform")
	}
	var pass, hot []*dataset.Column
	for _, c := range d.Columns {
		col, err := f.Column(c.Name)
		if err != nil {
			return nil, err
		}
		if c.Kind == Passthrough {
			pass = append(pass, col)
		} else {
			hot = append(hot, col)
		}
	}

	out := sparse.NewBuilder(d.NFeatures())
	out.Grow(f.Len() * (len(pass) + len(hot)))
	indices := make([]int, 0, len(pass)+len(hot))
	values := make([]float64, 0, len(pass)+len(hot))
	for i := 0; i < f.Len(); i++ {
		indices, values = indices[:0], values[:0]
		for j, col := range pass {
			if col.IsMissing(i) {
				continue
			}
			v, err := strconv.ParseFloat(col.Values[i], 64)
			if err != nil {
				return nil, errors.NewEncodingError("dummies", col.Name, i, err)
			}
			indices = append(indices, j)
			values = append(values, v)
		}
		for _, col := range hot {
			if col.IsMissing(i) {
				continue
			}
			if k, ok := d.index[col.Name][col.Values[i]]; ok {
				indices = append(indices, k)
				values = append(values, 1)
			}
		}
		out.AddRow(indices, values)
	}
	return out.Build(), nil
}

// FitTransform fits and transforms the same frame.
func (d *DummyEncoder) FitTransform(f *dataset.Frame) (*sparse.CSR, error) {
	if err := d.Fit(f); err != nil {
		return nil, err
	}
	return d.Transform(f)
}
