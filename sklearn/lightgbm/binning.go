package lightgbm

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/pricecast/core/sparse"
)

// BinMapper は1特徴量の値をビン番号に写す
// Bounds[k] はビン k の上限 (v <= Bounds[k])、最後は +Inf
type BinMapper struct {
	Bounds  []float64
	ZeroBin int
}

// NumBins returns the number of bins.
func (b *BinMapper) NumBins() int { return len(b.Bounds) }

// Bin returns the bin of v.
func (b *BinMapper) Bin(v float64) int {
	return sort.SearchFloat64s(b.Bounds, v)
}

// newBinMapper はゼロ (nZeros 個) と非ゼロ値からビン境界を決める
// 異なる値が maxBin 以下なら1値1ビン、超える場合は等頻度で区切る
func newBinMapper(nonzeros []float64, nZeros int, maxBin int) *BinMapper {
	values := append([]float64(nil), nonzeros...)
	if nZeros > 0 {
		values = append(values, 0)
	}
	sort.Float64s(values)

	distinct := values[:0:0]
	counts := []int{}
	for _, v := range values {
		if n := len(distinct); n > 0 && distinct[n-1] == v {
			counts[n-1]++
			continue
		}
		distinct = append(distinct, v)
		counts = append(counts, 1)
	}
	// 0 は上で1つだけ足している
	if nZeros > 0 {
		counts[sort.SearchFloat64s(distinct, 0)] += nZeros - 1
	}

	var bounds []float64
	if len(distinct) <= maxBin {
		for k := 0; k+1 < len(distinct); k++ {
			bounds = append(bounds, (distinct[k]+distinct[k+1])/2)
		}
	} else {
		total := 0
		for _, c := range counts {
			total += c
		}
		perBin := float64(total) / float64(maxBin)
		acc := 0
		for k := 0; k+1 < len(distinct) && len(bounds) < maxBin-1; k++ {
			acc += counts[k]
			if float64(acc) >= perBin*float64(len(bounds)+1) {
				bounds = append(bounds, (distinct[k]+distinct[k+1])/2)
			}
		}
	}
	bounds = append(bounds, math.Inf(1))
	m := &BinMapper{Bounds: bounds}
	m.ZeroBin = m.Bin(0)
	return m
}

// binnedDataset は学習行の非ゼロ要素をビン番号で持つ行指向の表現
// ZeroBin に落ちる要素は保持しない
type binnedDataset struct {
	nRows     int
	nFeatures int
	mappers   []*BinMapper
	usable    []int // ビンが2つ以上ある特徴量
	offsets   []int // 特徴量ごとのヒストグラム先頭位置 (-1 は未使用)
	totalBins int

	indptr   []int
	features []int32
	bins     []uint16
}

func newBinnedDataset(X *sparse.CSR, maxBin int) *binnedDataset {
	rows, cols := X.Dims()
	perFeature := make([][]float64, cols)
	X.DoNonZero(func(_, j int, v float64) {
		perFeature[j] = append(perFeature[j], v)
	})

	ds := &binnedDataset{
		nRows:     rows,
		nFeatures: cols,
		mappers:   make([]*BinMapper, cols),
		offsets:   make([]int, cols),
	}
	for j := 0; j < cols; j++ {
		ds.mappers[j] = newBinMapper(perFeature[j], rows-len(perFeature[j]), maxBin)
		perFeature[j] = nil
		if ds.mappers[j].NumBins() < 2 {
			ds.offsets[j] = -1
			continue
		}
		ds.offsets[j] = ds.totalBins
		ds.totalBins += ds.mappers[j].NumBins()
		ds.usable = append(ds.usable, j)
	}

	ds.indptr = make([]int, 1, rows+1)
	for i := 0; i < rows; i++ {
		idx, val := X.Row(i)
		for k, j := range idx {
			if ds.offsets[j] < 0 {
				continue
			}
			m := ds.mappers[j]
			if b := m.Bin(val[k]); b != m.ZeroBin {
				ds.features = append(ds.features, int32(j))
				ds.bins = append(ds.bins, uint16(b))
			}
		}
		ds.indptr = append(ds.indptr, len(ds.features))
	}
	return ds
}

// binOf returns the bin of feature j in row i.
func (ds *binnedDataset) binOf(i, j int) int {
	lo, hi := ds.indptr[i], ds.indptr[i+1]
	f := int32(j)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if ds.features[mid] < f {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < ds.indptr[i+1] && ds.features[lo] == f {
		return int(ds.bins[lo])
	}
	return ds.mappers[j].ZeroBin
}
