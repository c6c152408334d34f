package embedding

import (
	"bufio"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

// Embedder looks up a fixed-dimension vector per token.
type Embedder interface {
	Dim() int
	// Vector returns the vector of token and whether one exists.
	// Callers must not modify the returned slice.
	Vector(token string) ([]float64, bool)
}

// WordVectors is an in-memory token → vector table.
type WordVectors struct {
	dim     int
	vectors map[string][]float64
}

// NewWordVectors creates an empty table of dimension dim.
func NewWordVectors(dim int) *WordVectors {
	return &WordVectors{dim: dim, vectors: make(map[string][]float64)}
}

// Add stores v for token. v must have length Dim.
func (w *WordVectors) Add(token string, v []float64) error {
	if len(v) != w.dim {
		return errors.NewDimensionError("WordVectors.Add", w.dim, len(v), 1)
	}
	w.vectors[token] = v
	return nil
}

// Dim returns the vector dimension.
func (w *WordVectors) Dim() int { return w.dim }

// Len returns the number of tokens.
func (w *WordVectors) Len() int { return len(w.vectors) }

// Vector returns the vector for token.
func (w *WordVectors) Vector(token string) ([]float64, bool) {
	v, ok := w.vectors[token]
	return v, ok
}

// LoadWordVectors reads the word2vec/GloVe text format: one token per line
// followed by its space separated components. An optional "count dim"
// header line is skipped.
func LoadWordVectors(r io.Reader) (*WordVectors, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<24)
	var wv *WordVectors
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if line == 1 && len(fields) == 2 {
			if _, err := strconv.Atoi(fields[0]); err == nil {
				continue
			}
		}
		if len(fields) < 2 {
			return nil, errors.NewEncodingError("LoadWordVectors", "", line, errors.New("token without components"))
		}
		vec := make([]float64, len(fields)-1)
		for k, f := range fields[1:] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, errors.NewEncodingError("LoadWordVectors", fields[0], line, err)
			}
			vec[k] = v
		}
		if wv == nil {
			wv = NewWordVectors(len(vec))
		}
		if err := wv.Add(fields[0], vec); err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "embedding: read vectors")
	}
	if wv == nil {
		return nil, errors.NewModelError("LoadWordVectors", "empty vectors file", errors.ErrEmptyData)
	}
	return wv, nil
}

// HashEmbedder derives a deterministic pseudo-random unit-scale vector from
// each token's hash. It has a vector for every token and is used when no
// pretrained vectors are configured.
type HashEmbedder struct {
	dim  int
	seed uint64
}

// NewHashEmbedder creates a HashEmbedder.
func NewHashEmbedder(dim int, seed uint64) *HashEmbedder {
	return &HashEmbedder{dim: dim, seed: seed}
}

// Dim returns the vector dimension.
func (h *HashEmbedder) Dim() int { return h.dim }

// Vector returns the vector for token.
func (h *HashEmbedder) Vector(token string) ([]float64, bool) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(token))
	rng := rand.New(rand.NewPCG(f.Sum64(), h.seed))
	v := make([]float64, h.dim)
	for i := range v {
		v[i] = rng.NormFloat64()
	}
	return v, true
}
