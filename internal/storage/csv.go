package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nota/internal/core"
)

// Header is the exact column layout of the flat file.
var Header = []string{"date", "item", "quantity", "unitPrice", "total"}

// CSVStore keeps the collection in a single CSV file with a header row.
type CSVStore struct {
	path string
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file location.
func (s *CSVStore) Path() string {
	return s.path
}

// LoadAll implements Store. A missing file is an empty collection.
func (s *CSVStore) LoadAll(ctx context.Context) ([]core.Record, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.DebugContext(ctx, "Nota file not found, starting empty", "path", s.path)
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer f.Close()

	records, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}

	slog.DebugContext(ctx, "Nota file loaded", "path", s.path, "records", len(records))
	return records, nil
}

// SaveAll implements Store. The file is written next to the target and
// renamed over it, so a crash mid-write leaves the previous content intact.
func (s *CSVStore) SaveAll(ctx context.Context, records []core.Record) error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	if err := WriteCSV(f, records); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	slog.DebugContext(ctx, "Nota file saved", "path", s.path, "records", len(records))
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}

// WriteCSV writes the header and one row per record.
func WriteCSV(w io.Writer, records []core.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			r.Date.String(),
			r.Item,
			strconv.FormatInt(r.Quantity, 10),
			strconv.FormatInt(r.UnitPrice, 10),
			strconv.FormatInt(r.Total, 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSV parses the flat layout. Every record gets a fresh identifier since
// the file does not carry one. An empty input is an empty collection.
func ReadCSV(r io.Reader) ([]core.Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []core.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", core.ErrMalformedStore, err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	records := []core.Record{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", core.ErrMalformedStore, err)
		}
		line, _ := cr.FieldPos(0)
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", core.ErrMalformedStore, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func checkHeader(header []string) error {
	if len(header) != len(Header) {
		return fmt.Errorf("%w: expected %d columns %v, got %d %v", core.ErrMalformedStore, len(Header), Header, len(header), header)
	}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name != Header[i] {
			return fmt.Errorf("%w: column %d is %q, expected %q", core.ErrMalformedStore, i+1, name, Header[i])
		}
	}
	return nil
}

func parseRow(row []string) (core.Record, error) {
	if len(row) != len(Header) {
		return core.Record{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}
	date, err := core.ParseDate(row[0])
	if err != nil {
		return core.Record{}, err
	}
	nums := make([]int64, 3)
	for i, col := range row[2:] {
		v, err := strconv.ParseInt(strings.TrimSpace(col), 10, 64)
		if err != nil {
			return core.Record{}, fmt.Errorf("column %s: %q is not an integer", Header[i+2], col)
		}
		nums[i] = v
	}
	rec := core.Record{
		ID:        uuid.NewString(),
		Date:      date,
		Item:      row[1],
		Quantity:  nums[0],
		UnitPrice: nums[1],
		Total:     nums[2],
	}
	if !rec.Consistent() {
		return core.Record{}, fmt.Errorf("total %d does not equal %d x %d", rec.Total, rec.Quantity, rec.UnitPrice)
	}
	return rec, nil
}
