package google

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"nota/internal/core"
	"nota/internal/storage"
)

// toRows renders the header and records as a values matrix.
func toRows(records []core.Record) [][]interface{} {
	rows := make([][]interface{}, 0, len(records)+1)
	header := make([]interface{}, len(storage.Header))
	for i, name := range storage.Header {
		header[i] = name
	}
	rows = append(rows, header)
	for _, r := range records {
		rows = append(rows, []interface{}{r.Date.String(), r.Item, r.Quantity, r.UnitPrice, r.Total})
	}
	return rows
}

// parseRows converts a values matrix (as returned by the Sheets API) into
// records. Trailing empty cells may be omitted by the API, so short rows are
// padded before validation.
func parseRows(values [][]interface{}) ([]core.Record, error) {
	if len(values) == 0 {
		return []core.Record{}, nil
	}
	headers := toStrings(values[0])
	for i, want := range storage.Header {
		if !strings.EqualFold(strings.TrimSpace(safeGet(headers, i)), want) {
			return nil, fmt.Errorf("%w: unexpected sheet header %v", core.ErrMalformedStore, headers)
		}
	}

	records := make([]core.Record, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		row := values[i]
		if len(row) == 0 {
			continue
		}
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: sheet row %d: %v", core.ErrMalformedStore, i+1, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []interface{}) (core.Record, error) {
	cells := toStrings(row)
	date, err := core.ParseDate(safeGet(cells, 0))
	if err != nil {
		return core.Record{}, err
	}
	nums := make([]int64, 3)
	for i := range nums {
		v, err := toInt(cellAt(row, i+2))
		if err != nil {
			return core.Record{}, fmt.Errorf("column %s: %v", storage.Header[i+2], err)
		}
		nums[i] = v
	}
	rec := core.Record{
		ID:        uuid.NewString(),
		Date:      date,
		Item:      safeGet(cells, 1),
		Quantity:  nums[0],
		UnitPrice: nums[1],
		Total:     nums[2],
	}
	if !rec.Consistent() {
		return core.Record{}, fmt.Errorf("total %d does not equal %d x %d", rec.Total, rec.Quantity, rec.UnitPrice)
	}
	return rec, nil
}

func cellAt(row []interface{}, idx int) interface{} {
	if idx < len(row) {
		return row[idx]
	}
	return nil
}

// toInt accepts the numeric forms the API returns for whole numbers.
func toInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected cell %v", v)
	}
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < len(arr) {
		return arr[idx]
	}
	return ""
}
