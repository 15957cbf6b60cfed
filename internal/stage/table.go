// Package stage persists the intermediate records of a merge run as flat
// tab-separated tables, one file per record kind, with a YAML manifest.
//
// Staged directories let a run be split into an extract step and a merge
// step, and leave an inspectable trail of what was resolved. The format is
// internal to watchgraft and versioned by ir.StageVersion.
package stage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Null is how an absent optional value is written.
const Null = `\N`

// encoding/csv folds CRLF inside quoted fields to LF on read, so text
// columns escape backslash and CR before writing.
var (
	textEscaper   = strings.NewReplacer(`\`, `\\`, "\r", `\r`)
	textUnescaper = strings.NewReplacer(`\\`, `\`, `\r`, "\r")
)

// table describes the columns of one staged file and how a record maps
// onto them.
type table[T any] struct {
	file    string
	columns []string
	encode  func(T) []string
	decode  func(row) (T, error)
}

// row is one decoded line with column-aware accessors. The first decode
// error is kept and later accessors return zero values.
type row struct {
	fields []string
	cols   []string
	err    error
}

func (r *row) str(i int) string {
	return textUnescaper.Replace(r.fields[i])
}

func (r *row) int(i int) int64 {
	if r.err != nil {
		return 0
	}
	n, err := strconv.ParseInt(r.fields[i], 10, 64)
	if err != nil {
		r.err = fmt.Errorf("column %s: %w", r.cols[i], err)
	}
	return n
}

func (r *row) optInt(i int) *int64 {
	if r.fields[i] == Null {
		return nil
	}
	n := r.int(i)
	if r.err != nil {
		return nil
	}
	return &n
}

func fmtStr(s string) string {
	return textEscaper.Replace(s)
}

func fmtInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func fmtOptInt(n *int64) string {
	if n == nil {
		return Null
	}
	return fmtInt(*n)
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	return cw
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.ReuseRecord = true
	return cr
}

// writeTable writes records to dir/t.file with a header row and returns
// the number of data rows written.
func writeTable[T any](dir string, t table[T], records []T) (n int, err error) {
	path := filepath.Join(dir, t.file)
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", t.file, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", t.file, cerr)
		}
	}()

	w := newWriter(f)
	if err := w.Write(t.columns); err != nil {
		return 0, fmt.Errorf("write %s header: %w", t.file, err)
	}
	for _, rec := range records {
		if err := w.Write(t.encode(rec)); err != nil {
			return n, fmt.Errorf("write %s row %d: %w", t.file, n+1, err)
		}
		n++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, fmt.Errorf("flush %s: %w", t.file, err)
	}
	return n, nil
}

// ErrHeaderMismatch is returned when a staged file's header differs from
// the columns this version writes.
var ErrHeaderMismatch = errors.New("staged header mismatch")

// readTable lazily reads dir/t.file. The header must match t.columns.
func readTable[T any](dir string, t table[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		f, err := os.Open(filepath.Join(dir, t.file))
		if err != nil {
			yield(zero, fmt.Errorf("open %s: %w", t.file, err))
			return
		}
		defer f.Close()

		r := newReader(f)
		header, err := r.Read()
		if err != nil {
			yield(zero, fmt.Errorf("read %s header: %w", t.file, err))
			return
		}
		if !slices.Equal(header, t.columns) {
			yield(zero, fmt.Errorf("%s: %w: got %v, want %v", t.file, ErrHeaderMismatch, header, t.columns))
			return
		}

		for line := 2; ; line++ {
			fields, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(zero, fmt.Errorf("read %s: %w", t.file, err))
				return
			}
			rec, err := t.decode(row{fields: fields, cols: t.columns})
			if err != nil {
				yield(zero, fmt.Errorf("%s line %d: %w", t.file, line, err))
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}
