package core

import (
	"sort"
	"time"
)

// Indexed pairs a record with its position in the collection it was listed from.
type Indexed struct {
	Index int
	Record
}

// DayTotal is the aggregate of every record on a single date.
type DayTotal struct {
	Date    Date
	DayName string
	Total   int64
	Count   int // zero means no record on that date, as opposed to a zero total
}

// Totals is what the pages show: the overall sum and, when a date was
// requested, the sum for that date.
type Totals struct {
	Overall int64
	Day     *DayTotal
}

var dayNames = map[time.Weekday]string{
	time.Monday:    "Senin",
	time.Tuesday:   "Selasa",
	time.Wednesday: "Rabu",
	time.Thursday:  "Kamis",
	time.Friday:    "Jumat",
	time.Saturday:  "Sabtu",
	time.Sunday:    "Minggu",
}

// DayName returns the Indonesian weekday name of d.
func DayName(d Date) string {
	return dayNames[d.Weekday()]
}

// TotalForDate sums the totals of records dated exactly d.
func TotalForDate(records []Record, d Date) int64 {
	var sum int64
	for _, r := range records {
		if r.Date.Equal(d) {
			sum += r.Total
		}
	}
	return sum
}

// CountForDate counts the records dated exactly d.
func CountForDate(records []Record, d Date) int {
	n := 0
	for _, r := range records {
		if r.Date.Equal(d) {
			n++
		}
	}
	return n
}

// TotalOverall sums the totals of every record.
func TotalOverall(records []Record) int64 {
	var sum int64
	for _, r := range records {
		sum += r.Total
	}
	return sum
}

// DistinctDates returns every date present in records, oldest first.
func DistinctDates(records []Record) []Date {
	seen := make(map[string]Date)
	for _, r := range records {
		seen[r.Date.String()] = r.Date
	}
	out := make([]Date, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out
}

// DailyTotals returns one DayTotal per distinct date, oldest first.
func DailyTotals(records []Record) []DayTotal {
	dates := DistinctDates(records)
	out := make([]DayTotal, 0, len(dates))
	for _, d := range dates {
		out = append(out, dayTotal(records, d))
	}
	return out
}

// Filter lists records in collection order. With a non-nil date only exact
// matches are kept; Index always refers to the unfiltered position.
func Filter(records []Record, date *Date) []Indexed {
	out := make([]Indexed, 0, len(records))
	for i, r := range records {
		if date != nil && !r.Date.Equal(*date) {
			continue
		}
		out = append(out, Indexed{Index: i, Record: r})
	}
	return out
}

// ComputeTotals aggregates records for display.
func ComputeTotals(records []Record, date *Date) Totals {
	t := Totals{Overall: TotalOverall(records)}
	if date != nil {
		dt := dayTotal(records, *date)
		t.Day = &dt
	}
	return t
}

func dayTotal(records []Record, d Date) DayTotal {
	return DayTotal{
		Date:    d,
		DayName: DayName(d),
		Total:   TotalForDate(records, d),
		Count:   CountForDate(records, d),
	}
}
