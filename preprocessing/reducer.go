package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/pricecast/dataset"
	"github.com/YuminosukeSato/pricecast/pkg/errors"
	"github.com/YuminosukeSato/pricecast/pkg/log"
)

// Vocabulary maps a raw categorical value to itself when retained, or to
// the sentinel otherwise. It is read-only once built.
type Vocabulary struct {
	sentinel string
	values   []string
	index    map[string]int
}

// NewVocabulary creates a vocabulary retaining values in the given order.
func NewVocabulary(sentinel string, values []string) *Vocabulary {
	v := &Vocabulary{
		sentinel: sentinel,
		values:   append([]string(nil), values...),
		index:    make(map[string]int, len(values)),
	}
	for i, s := range v.values {
		v.index[s] = i
	}
	return v
}

// Map returns value if retained, the sentinel otherwise.
func (v *Vocabulary) Map(value string) string {
	if _, ok := v.index[value]; ok {
		return value
	}
	return v.sentinel
}

// Contains reports whether value is retained.
func (v *Vocabulary) Contains(value string) bool {
	_, ok := v.index[value]
	return ok
}

// Len returns the number of retained values, excluding the sentinel.
func (v *Vocabulary) Len() int { return len(v.values) }

// Values returns retained values by descending frequency.
func (v *Vocabulary) Values() []string { return append([]string(nil), v.values...) }

// Sentinel returns the value non-retained entries collapse to.
func (v *Vocabulary) Sentinel() string { return v.sentinel }

// CardinalityReducer keeps the K most frequent values of one column and
// rewrites every other value to Sentinel.
//
// 頻度はtrain/testを結合したFrame全体で数えるため、両分割で同じ語彙になる。
// 同数の場合は先に出現した値を優先する。
type CardinalityReducer struct {
	Column   string
	K        int
	Sentinel string

	vocab *Vocabulary
}

// NewCardinalityReducer creates a reducer for column.
func NewCardinalityReducer(column string, k int, sentinel string) *CardinalityReducer {
	return &CardinalityReducer{Column: column, K: k, Sentinel: sentinel}
}

// Fit counts value frequencies of the column and builds the vocabulary.
func (r *CardinalityReducer) Fit(f *dataset.Frame) (*Vocabulary, error) {
	if r.K < 0 {
		return nil, errors.NewValidationError("K", "must be non-negative", r.K)
	}
	col, err := f.Column(r.Column)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	var order []string
	for i, v := range col.Values {
		if col.IsMissing(i) || v == r.Sentinel {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})
	if len(order) > r.K {
		order = order[:r.K]
	}
	r.vocab = NewVocabulary(r.Sentinel, order)
	return r.vocab, nil
}

// Transform rewrites the column in place using the fitted vocabulary.
func (r *CardinalityReducer) Transform(f *dataset.Frame) error {
	if r.vocab == nil {
		return errors.NewNotFittedError("CardinalityReducer", "Transform")
	}
	col, err := f.Column(r.Column)
	if err != nil {
		return err
	}
	collapsed := 0
	for i, v := range col.Values {
		if col.IsMissing(i) {
			col.Set(i, r.Sentinel)
			continue
		}
		if m := r.vocab.Map(v); m != v {
			col.Set(i, m)
			collapsed++
		}
	}
	log.GetLoggerWithName("preprocessing").Debug("cardinality reduced",
		log.ColumnKey, r.Column,
		log.VocabularyKey, r.vocab.Len(),
		"collapsed", collapsed,
	)
	return nil
}

// Reduce fits and transforms in one step.
func (r *CardinalityReducer) Reduce(f *dataset.Frame) (*Vocabulary, error) {
	v, err := r.Fit(f)
	if err != nil {
		return nil, err
	}
	return v, r.Transform(f)
}

// Vocabulary returns the fitted vocabulary, or nil before Fit.
func (r *CardinalityReducer) Vocabulary() *Vocabulary { return r.vocab }
