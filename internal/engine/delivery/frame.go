package delivery

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// frame is a CSV table addressed by column name.
type frame struct {
	header []string
	rows   [][]string
	index  map[string]int
}

func newFrame(header []string, rows [][]string) *frame {
	f := &frame{header: header, rows: rows, index: make(map[string]int, len(header))}
	for i, h := range header {
		f.index[h] = i
	}
	return f
}

func readFrame(path string) (*frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	recs, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("read %s: no header", path)
	}
	return newFrame(recs[0], recs[1:]), nil
}

func (f *frame) write(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	fh, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(fh)
	if err := w.Write(f.header); err != nil {
		fh.Close()
		return err
	}
	if err := w.WriteAll(f.rows); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

func (f *frame) col(name string) (int, error) {
	i, ok := f.index[name]
	if !ok {
		return 0, fmt.Errorf("column %q not found", name)
	}
	return i, nil
}

// record returns row i keyed by column name.
func (f *frame) record(i int) map[string]string {
	m := make(map[string]string, len(f.header))
	for j, h := range f.header {
		m[h] = f.rows[i][j]
	}
	return m
}

// appendColumn adds a column whose values come from vals, in row order.
func (f *frame) appendColumn(name string, vals []string) {
	f.index[name] = len(f.header)
	f.header = append(f.header, name)
	for i := range f.rows {
		f.rows[i] = append(f.rows[i], vals[i])
	}
}

// drop removes the named columns. Every name must exist.
func (f *frame) drop(names ...string) error {
	var idx []int
	for _, n := range names {
		i, err := f.col(n)
		if err != nil {
			return fmt.Errorf("drop: %w", err)
		}
		idx = append(idx, i)
	}
	keep := func(j int) bool { return !slices.Contains(idx, j) }

	var header []string
	for j, h := range f.header {
		if keep(j) {
			header = append(header, h)
		}
	}
	for i, row := range f.rows {
		out := make([]string, 0, len(header))
		for j, v := range row {
			if keep(j) {
				out = append(out, v)
			}
		}
		f.rows[i] = out
	}
	*f = *newFrame(header, f.rows)
	return nil
}

// subset returns a frame with the rows at the given positions.
func (f *frame) subset(positions []int) *frame {
	rows := make([][]string, len(positions))
	for i, p := range positions {
		rows[i] = f.rows[p]
	}
	return newFrame(slices.Clone(f.header), rows)
}
