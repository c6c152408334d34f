package preprocessing

import (
	"strconv"
	"strings"

	"github.com/YuminosukeSato/pricecast/dataset"
)

// Derived column names added by Normalizer.
const (
	ColCat1         = "cat1"
	ColCat2         = "cat2"
	ColCat3         = "cat3"
	ColHasBrand     = "has_brand"
	ColDescHasPrice = "desc_has_price"
	ColText         = "text"
)

// CategoryColumns are the fixed-depth sub-fields of the category path.
var CategoryColumns = []string{ColCat1, ColCat2, ColCat3}

// Normalizer fills missing values with sentinels, splits the category path
// into CategoryDepth sub-fields and derives boolean indicators.
//
// Normalize は全入力に対して定義され、正規化済みのFrameに再適用しても結果は変わらない。
type Normalizer struct {
	// BrandSentinel は欠損ブランドの代替ラベル
	BrandSentinel string
	// CategorySentinel は欠損カテゴリの1階層分の代替ラベル
	CategorySentinel string
	// CategoryDepth はカテゴリパスの階層数 (デフォルト: 3)
	CategoryDepth int
	// CategoryDelimiter はカテゴリパスの区切り文字
	CategoryDelimiter string
	// DescriptionPlaceholder と完全一致する説明文は空文字として扱う
	DescriptionPlaceholder string
	// PriceMarker は説明文中の価格伏せ字
	PriceMarker string
}

// NewNormalizer returns a Normalizer with the marketplace defaults.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		BrandSentinel:          "missing",
		CategorySentinel:       "missing",
		CategoryDepth:          3,
		CategoryDelimiter:      "/",
		DescriptionPlaceholder: "No description yet",
		PriceMarker:            "[rm]",
	}
}

// SentinelPath returns the full-depth category path used for missing values.
func (n *Normalizer) SentinelPath() string {
	segs := make([]string, n.depth())
	for i := range segs {
		segs[i] = n.CategorySentinel
	}
	return strings.Join(segs, n.CategoryDelimiter)
}

func (n *Normalizer) depth() int {
	if n.CategoryDepth <= 0 {
		return 3
	}
	return n.CategoryDepth
}

// SplitCategory splits path into exactly CategoryDepth segments. Empty
// segments and missing trailing levels become the sentinel, extra levels
// are dropped.
func (n *Normalizer) SplitCategory(path string) []string {
	out := make([]string, n.depth())
	parts := strings.Split(path, n.CategoryDelimiter)
	for i := range out {
		if i < len(parts) && strings.TrimSpace(parts[i]) != "" {
			out[i] = parts[i]
			continue
		}
		out[i] = n.CategorySentinel
	}
	return out
}

// Description returns the normalized description text.
func (n *Normalizer) Description(v string, present bool) string {
	if !present || v == n.DescriptionPlaceholder {
		return ""
	}
	return v
}

// Normalize mutates f in place.
func (n *Normalizer) Normalize(f *dataset.Frame) error {
	name, err := f.Column(dataset.ColName)
	if err != nil {
		return err
	}
	brand, err := f.Column(dataset.ColBrand)
	if err != nil {
		return err
	}
	category, err := f.Column(dataset.ColCategory)
	if err != nil {
		return err
	}
	desc, err := f.Column(dataset.ColDescription)
	if err != nil {
		return err
	}

	rows := f.Len()
	sentinelPath := n.SentinelPath()
	cats := make([]*dataset.Column, n.depth())
	for d := range cats {
		cats[d] = dataset.NewColumn(categoryColumnName(d), make([]string, rows))
	}
	hasBrand := dataset.NewColumn(ColHasBrand, make([]string, rows))
	hasPrice := dataset.NewColumn(ColDescHasPrice, make([]string, rows))

	for i := 0; i < rows; i++ {
		if name.IsMissing(i) {
			name.Set(i, "")
		}
		if brand.IsMissing(i) || brand.Values[i] == "" {
			brand.Set(i, n.BrandSentinel)
		}
		if category.IsMissing(i) || strings.TrimSpace(category.Values[i]) == "" {
			category.Set(i, sentinelPath)
		}
		desc.Set(i, n.Description(desc.Values[i], !desc.IsMissing(i)))

		for d, seg := range n.SplitCategory(category.Values[i]) {
			cats[d].Values[i] = seg
		}
		hasBrand.Values[i] = boolString(brand.Values[i] != n.BrandSentinel)
		hasPrice.Values[i] = boolString(n.PriceMarker != "" && strings.Contains(desc.Values[i], n.PriceMarker))
	}

	for _, c := range cats {
		if err := f.Set(c); err != nil {
			return err
		}
	}
	if err := f.Set(hasBrand); err != nil {
		return err
	}
	return f.Set(hasPrice)
}

// ComposeText adds ColText = name + sep + brand + sep + description.
func ComposeText(f *dataset.Frame, sep string) error {
	parts := []string{dataset.ColName, dataset.ColBrand, dataset.ColDescription}
	cols := make([]*dataset.Column, len(parts))
	for i, p := range parts {
		c, err := f.Column(p)
		if err != nil {
			return err
		}
		cols[i] = c
	}
	text := dataset.NewColumn(ColText, make([]string, f.Len()))
	var sb strings.Builder
	for i := range text.Values {
		sb.Reset()
		for k, c := range cols {
			if k > 0 {
				sb.WriteString(sep)
			}
			if !c.IsMissing(i) {
				sb.WriteString(c.Values[i])
			}
		}
		text.Values[i] = sb.String()
	}
	return f.Set(text)
}

func categoryColumnName(d int) string {
	if d < len(CategoryColumns) {
		return CategoryColumns[d]
	}
	return "cat" + strconv.Itoa(d+1)
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
