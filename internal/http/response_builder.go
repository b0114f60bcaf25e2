package http

// This file implements the builder used for HTMX responses and the mapping
// from domain errors to status codes and user-facing messages.

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"

	"nota/internal/core"
	"nota/internal/services"
)

// HTMXResponseBuilder provides a fluent API for building HTMX responses.
type HTMXResponseBuilder struct {
	triggers   map[string]any
	statusCode int
	body       []byte
	headers    map[string]string
}

// NewHTMXResponse creates a new response builder with default 200 status.
func NewHTMXResponse() *HTMXResponseBuilder {
	return &HTMXResponseBuilder{
		triggers:   make(map[string]any),
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *HTMXResponseBuilder) Status(code int) *HTMXResponseBuilder {
	b.statusCode = code
	return b
}

// Trigger adds a named event with optional data to the HX-Trigger header.
func (b *HTMXResponseBuilder) Trigger(name string, data any) *HTMXResponseBuilder {
	b.triggers[name] = data
	return b
}

// TriggerNotaChanged tells the page that the notes of date changed.
func (b *HTMXResponseBuilder) TriggerNotaChanged(op string, date core.Date) *HTMXResponseBuilder {
	return b.Trigger("nota:changed", map[string]string{"op": op, "date": date.String()})
}

// TriggerFormReset adds the form:reset trigger.
func (b *HTMXResponseBuilder) TriggerFormReset() *HTMXResponseBuilder {
	return b.Trigger("form:reset", struct{}{})
}

// NotificationType represents the type of notification to display.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// TriggerNotification adds a show-notification trigger.
func (b *HTMXResponseBuilder) TriggerNotification(notifType NotificationType, message string, durationMs int) *HTMXResponseBuilder {
	return b.Trigger("show-notification", map[string]any{
		"type":     string(notifType),
		"message":  message,
		"duration": durationMs,
	})
}

func (b *HTMXResponseBuilder) TriggerSuccessNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationSuccess, message, 3000)
}

func (b *HTMXResponseBuilder) TriggerErrorNotification(message string) *HTMXResponseBuilder {
	return b.TriggerNotification(NotificationError, message, 5000)
}

// Redirect asks htmx to navigate to url after the swap.
func (b *HTMXResponseBuilder) Redirect(url string) *HTMXResponseBuilder {
	return b.Header("HX-Redirect", url)
}

// Header adds a custom header to the response.
func (b *HTMXResponseBuilder) Header(name, value string) *HTMXResponseBuilder {
	b.headers[name] = value
	return b
}

// BodyHTML sets the response body as HTML content.
func (b *HTMXResponseBuilder) BodyHTML(html string) *HTMXResponseBuilder {
	b.headers["Content-Type"] = "text/html; charset=utf-8"
	b.body = []byte(html)
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *HTMXResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if len(b.triggers) > 0 {
		triggerJSON, err := json.Marshal(b.triggers)
		if err == nil {
			w.Header().Set("HX-Trigger", string(triggerJSON))
		}
	}

	w.WriteHeader(b.statusCode)
	if len(b.body) > 0 {
		_, _ = w.Write(b.body)
	}
}

// ErrorResponse creates an error fragment. The message is HTML-escaped.
func ErrorResponse(statusCode int, message string) *HTMXResponseBuilder {
	return NewHTMXResponse().
		Status(statusCode).
		TriggerErrorNotification(message).
		BodyHTML(`<div class="error">` + template.HTMLEscapeString(message) + `</div>`)
}

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps a service or input error to its HTTP status.
func statusFor(err error) int {
	switch {
	case isValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidIndex):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidDate,
		core.ErrInvalidQuantity,
		core.ErrInvalidPrice,
		core.ErrItemTooLong,
		core.ErrInvalidAmount,
		errBadRequest,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// userMessage renders err for the Indonesian pages.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidDate):
		return "Tanggal tidak valid."
	case errors.Is(err, core.ErrInvalidQuantity):
		return "Jumlah tidak boleh negatif."
	case errors.Is(err, core.ErrInvalidPrice):
		return "Harga minimal " + core.FormatRupiah(core.MinUnitPrice) + "."
	case errors.Is(err, core.ErrItemTooLong):
		return "Nama barang terlalu panjang."
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, errBadRequest):
		return "Isian tidak valid."
	case errors.Is(err, core.ErrNotFound):
		return "Nota tidak ditemukan."
	case errors.Is(err, core.ErrInvalidIndex):
		return "Nota sudah berubah, muat ulang daftar."
	default:
		return "Gagal menyimpan nota."
	}
}
