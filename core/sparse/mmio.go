package sparse

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/pricecast/pkg/errors"
)

const mmHeader = "%%MatrixMarket matrix coordinate real general"

// WriteMatrixMarket writes m in Matrix Market coordinate format with 1-based
// indices, in row-major entry order. comment lines are prefixed with '%'.
func WriteMatrixMarket(w io.Writer, m *CSR, comment ...string) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, mmHeader); err != nil {
		return errors.Wrap(err, "write matrix market header")
	}
	for _, c := range comment {
		fmt.Fprintf(bw, "%%%s\n", c)
	}
	fmt.Fprintf(bw, "%d %d %d\n", m.rows, m.cols, len(m.data))

	var werr error
	buf := make([]byte, 0, 64)
	m.DoNonZero(func(i, j int, v float64) {
		if werr != nil {
			return
		}
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(i+1), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(j+1), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		buf = append(buf, '\n')
		_, werr = bw.Write(buf)
	})
	if werr != nil {
		return errors.Wrap(werr, "write matrix market entries")
	}
	return errors.Wrap(bw.Flush(), "flush matrix market")
}

// ReadMatrixMarket reads a real general coordinate Matrix Market stream.
func ReadMatrixMarket(r io.Reader) (*CSR, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !sc.Scan() {
		return nil, errors.NewValueError("sparse.ReadMatrixMarket", "missing header")
	}
	header := strings.ToLower(strings.TrimSpace(sc.Text()))
	if !strings.HasPrefix(header, "%%matrixmarket matrix coordinate") ||
		!strings.Contains(header, "real") || !strings.HasSuffix(header, "general") {
		return nil, errors.Newf("sparse.ReadMatrixMarket: unsupported header %q", sc.Text())
	}

	var rows, cols, nnz int
	sized := false
	var b *Builder
	curRow := 0
	var rowIdx []int
	var rowVal []float64
	read := 0

	flushUntil := func(row int) {
		for curRow < row {
			b.AddRow(rowIdx, rowVal)
			rowIdx, rowVal = rowIdx[:0], rowVal[:0]
			curRow++
		}
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		fields := strings.Fields(line)
		if !sized {
			if len(fields) != 3 {
				return nil, errors.Newf("sparse.ReadMatrixMarket: bad size line %q", line)
			}
			var err error
			if rows, err = strconv.Atoi(fields[0]); err != nil {
				return nil, errors.Wrap(err, "parse rows")
			}
			if cols, err = strconv.Atoi(fields[1]); err != nil {
				return nil, errors.Wrap(err, "parse cols")
			}
			if nnz, err = strconv.Atoi(fields[2]); err != nil {
				return nil, errors.Wrap(err, "parse nnz")
			}
			b = NewBuilder(cols)
			b.Grow(nnz)
			sized = true
			continue
		}
		if len(fields) != 3 {
			return nil, errors.Newf("sparse.ReadMatrixMarket: bad entry %q", line)
		}
		i, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Wrap(err, "parse row index")
		}
		j, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrap(err, "parse column index")
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, errors.Wrap(err, "parse value")
		}
		i--
		j--
		if i < 0 || i >= rows || j < 0 || j >= cols {
			return nil, errors.Newf("sparse.ReadMatrixMarket: entry (%d,%d) outside %dx%d", i+1, j+1, rows, cols)
		}
		if i < curRow {
			return nil, errors.NewValueError("sparse.ReadMatrixMarket", "entries are not in row-major order")
		}
		flushUntil(i)
		rowIdx = append(rowIdx, j)
		rowVal = append(rowVal, v)
		read++
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "scan matrix market")
	}
	if !sized {
		return nil, errors.NewValueError("sparse.ReadMatrixMarket", "missing size line")
	}
	if read != nnz {
		return nil, errors.Newf("sparse.ReadMatrixMarket: expected %d entries, read %d", nnz, read)
	}
	flushUntil(rows)
	return b.Build(), nil
}
