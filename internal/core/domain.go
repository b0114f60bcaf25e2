package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DateLayout is the persisted form of a Date.
const DateLayout = "2006-01-02"

// MinUnitPrice is the smallest unit price accepted by the input forms.
const MinUnitPrice int64 = 1000

// MaxItemLength bounds the free-text item label.
const MaxItemLength = 200

type (
	// Date is a calendar day. The time component is always UTC midnight.
	Date struct {
		time.Time
	}

	// Record is one sales/purchase line of a nota.
	Record struct {
		ID        string
		Date      Date
		Item      string
		Quantity  int64
		UnitPrice int64
		Total     int64 // always Quantity * UnitPrice
	}

	// Fields are the user-editable values of a Record.
	Fields struct {
		Date      Date
		Item      string
		Quantity  int64
		UnitPrice int64
	}
)

var (
	ErrInvalidIndex    = errors.New("invalid index")
	ErrNotFound        = errors.New("record not found")
	ErrMalformedStore  = errors.New("malformed store")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrInvalidPrice    = fmt.Errorf("unit price must be at least %d", MinUnitPrice)
	ErrItemTooLong     = fmt.Errorf("item too long (max %d characters)", MaxItemLength)
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping t's location for the day boundary.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// String renders the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// Equal reports whether both dates are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.String() == other.String()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// NewRecord builds a record with a fresh identifier and a computed total.
func NewRecord(f Fields) Record {
	r := Record{ID: uuid.NewString()}
	r.Apply(f)
	return r
}

// Apply replaces every editable field and recomputes the total.
func (r *Record) Apply(f Fields) {
	r.Date = f.Date
	r.Item = normalizeLineBreaks(f.Item)
	r.Quantity = f.Quantity
	r.UnitPrice = f.UnitPrice
	r.Recompute()
}

// Recompute re-derives Total from Quantity and UnitPrice.
func (r *Record) Recompute() {
	r.Total = r.Quantity * r.UnitPrice
}

// Consistent reports whether the stored total matches quantity times price.
func (r Record) Consistent() bool {
	return r.Total == r.Quantity*r.UnitPrice
}

// Fields returns the editable part of the record.
func (r Record) Fields() Fields {
	return Fields{Date: r.Date, Item: r.Item, Quantity: r.Quantity, UnitPrice: r.UnitPrice}
}

// Validate applies the input rules of the nota forms. The storage and
// service layers accept any well-typed Fields; only callers taking user
// input are expected to call it.
func (f Fields) Validate() error {
	if err := f.Date.Validate(); err != nil {
		return err
	}
	if err := validateItem(f.Item); err != nil {
		return err
	}
	if f.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if f.UnitPrice < MinUnitPrice {
		return ErrInvalidPrice
	}
	return nil
}

// ValidateChanged applies the input rules only to the fields that differ
// from prev. Unchanged fields are accepted as stored.
func (f Fields) ValidateChanged(prev Fields) error {
	if !f.Date.Equal(prev.Date) {
		if err := f.Date.Validate(); err != nil {
			return err
		}
	}
	if f.Item != prev.Item {
		if err := validateItem(f.Item); err != nil {
			return err
		}
	}
	if f.Quantity != prev.Quantity && f.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if f.UnitPrice != prev.UnitPrice && f.UnitPrice < MinUnitPrice {
		return ErrInvalidPrice
	}
	return nil
}

func validateItem(item string) error {
	if utf8.RuneCountInString(item) > MaxItemLength {
		return ErrItemTooLong
	}
	return nil
}

// normalizeLineBreaks turns CRLF and lone CR into LF. The CSV reader folds
// CRLF inside quoted fields, so an item must not carry one.
func normalizeLineBreaks(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}
