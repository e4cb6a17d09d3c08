package trending

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrShapeMismatch reports datasets whose columns cannot be concatenated.
var ErrShapeMismatch = errors.New("dataset shape mismatch")

// Dataset is a readable CSV dataset handle.
type Dataset interface {
	Name() string
	Open() (io.ReadCloser, error)
}

// FileDataset is a dataset on disk. Name is the base file name.
type FileDataset struct {
	Path string
}

func (d FileDataset) Name() string                 { return filepath.Base(d.Path) }
func (d FileDataset) Open() (io.ReadCloser, error) { return os.Open(d.Path) }

// MemDataset is an in-memory dataset.
type MemDataset struct {
	DatasetName string
	Content     string
}

func (d MemDataset) Name() string { return d.DatasetName }
func (d MemDataset) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(d.Content)), nil
}

// DirDatasets lists the regular files of dir, sorted by name.
func DirDatasets(dir string) ([]Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	var out []Dataset
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		out = append(out, FileDataset{Path: filepath.Join(dir, e.Name())})
	}
	return out, nil
}

// Table is a header plus rows of equal width.
type Table struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// ReadTable parses a quote-aware CSV dataset.
func ReadTable(d Dataset) (*Table, error) {
	rc, err := d.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.Name(), err)
	}
	defer rc.Close()

	r := csv.NewReader(rc)
	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: %w: empty dataset", d.Name(), ErrShapeMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Name(), err)
	}
	t := &Table{Header: header}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if errors.Is(err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("%s: %w: %v", d.Name(), ErrShapeMismatch, err)
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", d.Name(), err)
		}
		t.Rows = append(t.Rows, rec)
	}
	return t, nil
}

// Append concatenates o onto t. Headers must match exactly.
func (t *Table) Append(o *Table, name string) error {
	if t.Header == nil {
		t.Header = slices.Clone(o.Header)
	} else if !slices.Equal(t.Header, o.Header) {
		return fmt.Errorf("%s: %w: header %v, want %v", name, ErrShapeMismatch, o.Header, t.Header)
	}
	t.Rows = append(t.Rows, o.Rows...)
	return nil
}

// FlatUnion concatenates every dataset in the given order.
func FlatUnion(datasets []Dataset) (*Table, error) {
	out := &Table{}
	for _, d := range datasets {
		t, err := ReadTable(d)
		if err != nil {
			return nil, err
		}
		if err := out.Append(t, d.Name()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MatchCountries returns the codes occurring case-insensitively anywhere in
// name. A name may match several codes or none.
func MatchCountries(name string, codes []string) []string {
	upper := strings.ToUpper(name)
	var out []string
	for _, c := range codes {
		if c != "" && strings.Contains(upper, strings.ToUpper(c)) {
			out = append(out, c)
		}
	}
	return out
}

// GroupByCountry buckets datasets by MatchCountries on their name and
// concatenates each bucket. Codes without matching datasets are absent from
// the result; unmatched datasets are dropped.
func GroupByCountry(datasets []Dataset, codes []string) (map[string]*Table, error) {
	out := make(map[string]*Table)
	for _, d := range datasets {
		matched := MatchCountries(d.Name(), codes)
		if len(matched) == 0 {
			continue
		}
		t, err := ReadTable(d)
		if err != nil {
			return nil, err
		}
		for _, code := range matched {
			bucket, ok := out[code]
			if !ok {
				bucket = &Table{}
				out[code] = bucket
			}
			if err := bucket.Append(t, d.Name()); err != nil {
				return nil, fmt.Errorf("group %s: %w", code, err)
			}
		}
	}
	return out, nil
}

// SaveTable writes t as CSV, creating parent directories.
func SaveTable(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save table: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return fmt.Errorf("save table %s: %w", path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return fmt.Errorf("save table %s: %w", path, err)
	}
	return f.Close()
}
