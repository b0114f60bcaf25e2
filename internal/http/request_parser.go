package http

// This file turns form posts, JSON bodies and query strings into core values.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"nota/internal/core"
)

const maxBodyBytes = 64 << 10

var errBadRequest = errors.New("bad request")

// notaInput is the JSON shape accepted by the API. Numbers may also be sent
// as strings; either way they must be whole numbers.
type notaInput struct {
	Date      string      `json:"date"`
	Item      string      `json:"item"`
	Quantity  json.Number `json:"quantity"`
	UnitPrice json.Number `json:"unitPrice"`
}

// ParseFields reads the editable fields of a nota from a JSON body or a
// form post and applies the input rules.
func ParseFields(r *http.Request) (core.Fields, error) {
	var in notaInput
	if isJSON(r) {
		dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
		if err := dec.Decode(&in); err != nil {
			return core.Fields{}, fmt.Errorf("%w: decode body: %v", errBadRequest, err)
		}
		// JSON numbers carry no grouping, so a "." is always a fraction.
		if _, err := in.UnitPrice.Int64(); in.UnitPrice != "" && err != nil {
			return core.Fields{}, fmt.Errorf("unit price %q: %w", in.UnitPrice, core.ErrInvalidAmount)
		}
	} else {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return core.Fields{}, fmt.Errorf("%w: parse form: %v", errBadRequest, err)
		}
		in = notaInput{
			Date:      r.PostFormValue("date"),
			Item:      r.PostFormValue("item"),
			Quantity:  json.Number(r.PostFormValue("quantity")),
			UnitPrice: json.Number(r.PostFormValue("unitPrice")),
		}
	}
	return in.fields()
}

func (in notaInput) fields() (core.Fields, error) {
	date, err := core.ParseDate(sanitizeInput(in.Date))
	if err != nil {
		return core.Fields{}, err
	}

	qty, err := strconv.ParseInt(sanitizeInput(in.Quantity.String()), 10, 64)
	if err != nil {
		return core.Fields{}, fmt.Errorf("%w: %q", core.ErrInvalidQuantity, in.Quantity)
	}

	price, err := core.ParseAmount(sanitizeInput(in.UnitPrice.String()))
	if err != nil {
		return core.Fields{}, fmt.Errorf("unit price %q: %w", in.UnitPrice, err)
	}

	f := core.Fields{
		Date:      date,
		Item:      sanitizeInput(in.Item),
		Quantity:  qty,
		UnitPrice: price,
	}
	if err := f.Validate(); err != nil {
		return core.Fields{}, err
	}
	return f, nil
}

// parseDateQuery returns the ?date= filter, or nil when absent.
func parseDateQuery(r *http.Request) (*core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	if v == "" {
		return nil, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseIndex reads the {index} path value. Range checks happen in the service.
func parseIndex(r *http.Request) (int, error) {
	raw := r.PathValue("index")
	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q is not a number", errBadRequest, raw)
	}
	return i, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

func isJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func isAPI(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/")
}
