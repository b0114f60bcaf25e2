package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nota/internal/core"
	applog "nota/internal/log"
	"nota/internal/services"
	"nota/internal/storage"
)

var march1 = core.NewDate(2024, 3, 1)

func newTestServer(t *testing.T, rpm int, seed ...core.Record) (*Server, *services.NotaService) {
	t.Helper()
	svc := services.NewNotaService(storage.NewMemoryStore(seed...), nil)
	require.NoError(t, svc.Open(context.Background()))

	logger := applog.New(applog.Config{Output: io.Discard})
	srv, err := NewServer(":0", svc, Options{Logger: logger, RequestsPerMinute: rpm})
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.limiter.Stop()
		srv.cacheManager.Stop()
	})
	return srv, svc
}

func record(item string, qty, price int64) core.Record {
	return core.NewRecord(core.Fields{Date: march1, Item: item, Quantity: qty, UnitPrice: price})
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func notaForm(date, item, qty, price string) url.Values {
	return url.Values{"date": {date}, "item": {item}, "quantity": {qty}, "unitPrice": {price}}
}

func TestIndexAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/?date=2024-03-01", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Tambah Nota")
	assert.Contains(t, body, "01-03-2024 (Jumat)")
	assert.Contains(t, body, "Tidak ada data untuk tanggal tersebut.")
	assert.Contains(t, body, "Rp0")

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.True(t, strings.HasPrefix(rr.Header().Get("X-Request-ID"), "req_"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rr = do(t, srv, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
}

func TestCreateForm(t *testing.T) {
	t.Run("redirects after save", func(t *testing.T) {
		srv, svc := newTestServer(t, 0)

		rr := do(t, srv, formRequest("/nota", notaForm("2024-03-01", "Kopi", "2", "15.000")))
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/?date=2024-03-01&status=created", rr.Header().Get("Location"))

		records, err := svc.Records()
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(30000), records[0].Total)

		rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/?date=2024-03-01&status=created", nil))
		assert.Contains(t, rr.Body.String(), "Nota berhasil ditambahkan.")
		assert.Contains(t, rr.Body.String(), "Rp30.000")
	})

	t.Run("rejects low price", func(t *testing.T) {
		srv, svc := newTestServer(t, 0)

		rr := do(t, srv, formRequest("/nota", notaForm("2024-03-01", "Kopi", "2", "500")))
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Harga minimal Rp1.000.")
		assert.Contains(t, rr.Body.String(), `value="Kopi"`)
		assert.Zero(t, svc.Len())
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		srv, _ := newTestServer(t, 0)

		rr := do(t, srv, formRequest("/nota", notaForm("2024-03-01", "Kopi", "-1", "1000")))
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
		assert.Contains(t, rr.Body.String(), "Jumlah tidak boleh negatif.")
	})

	t.Run("htmx triggers", func(t *testing.T) {
		srv, _ := newTestServer(t, 0)

		req := formRequest("/nota", notaForm("2024-03-01", "Teh", "1", "10000"))
		req.Header.Set("HX-Request", "true")
		rr := do(t, srv, req)
		require.Equal(t, http.StatusOK, rr.Code)

		trigger := rr.Header().Get("HX-Trigger")
		assert.Contains(t, trigger, `"nota:changed"`)
		assert.Contains(t, trigger, `"form:reset"`)
		assert.Contains(t, trigger, "Rp10.000")
	})
}

func TestManagePage(t *testing.T) {
	other := core.NewRecord(core.Fields{Date: core.NewDate(2024, 3, 2), Item: "Gula", Quantity: 1, UnitPrice: 12000})
	srv, _ := newTestServer(t, 0, record("Kopi", 2, 15000), other)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/kelola?date=2024-03-02", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Gula")
	assert.NotContains(t, body, "Kopi")
	assert.Contains(t, body, "<td>1</td>", "filtered rows keep their original position")
	assert.Contains(t, body, "Rp42.000", "overall total in the sidebar")

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/kelola?date=2024-04-01", nil))
	assert.Contains(t, rr.Body.String(), "Tidak ada data untuk tanggal tersebut.")

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/kelola?all=1", nil))
	body = rr.Body.String()
	assert.Contains(t, body, "Total per Hari")
	assert.Contains(t, body, "Sabtu")
	assert.Contains(t, body, "Kopi")

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/kelola", nil))
	body = rr.Body.String()
	assert.Contains(t, body, `value="`+core.Today().String()+`"`, "the filter defaults to today")
	assert.NotContains(t, body, "Total per Hari")

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/kelola?date=bogus", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestManagePageEmptyCollection(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	for _, path := range []string{"/kelola", "/kelola?all=1", "/kelola?date=2024-03-01"} {
		rr := do(t, srv, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
		assert.Contains(t, rr.Body.String(), "Tidak ada data untuk ditampilkan.", path)
	}
}

func TestEditAndDeleteForms(t *testing.T) {
	kopi := record("Kopi", 2, 15000)
	teh := record("Teh", 1, 10000)
	srv, svc := newTestServer(t, 0, kopi, teh)

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/nota/"+kopi.ID+"/edit", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Ubah Nota")
	assert.Contains(t, rr.Body.String(), `value="15000"`)

	rr = do(t, srv, formRequest("/nota/"+kopi.ID, notaForm("2024-03-01", "Kopi", "3", "15000")))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/kelola?date=2024-03-01&status=updated", rr.Header().Get("Location"))

	rec, index, err := svc.Get(kopi.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, int64(45000), rec.Total)

	rr = do(t, srv, formRequest("/nota/"+kopi.ID+"/delete", url.Values{}))
	require.Equal(t, http.StatusSeeOther, rr.Code)
	_, index, err = svc.Get(teh.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/nota/"+kopi.ID+"/edit", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAPI(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	rr := do(t, srv, jsonRequest(http.MethodPost, "/api/nota",
		`{"date":"2024-03-01","item":"Kopi","quantity":2,"unitPrice":15000}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	var created recordJSON
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, int64(30000), created.Total)
	assert.Equal(t, 0, created.Index)
	assert.NotEmpty(t, created.ID)

	rr = do(t, srv, jsonRequest(http.MethodPost, "/api/nota",
		`{"date":"2024-03-01","item":"Roti","quantity":"1","unitPrice":"25000"}`))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, 1, created.Index)

	var totals totalsResponse
	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/totals?date=2024-03-01", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &totals))
	assert.Equal(t, int64(55000), totals.Overall)
	require.NotNil(t, totals.ForDate)
	assert.Equal(t, int64(55000), totals.ForDate.Total)
	assert.Equal(t, "Jumat", totals.ForDate.DayName)

	rr = do(t, srv, jsonRequest(http.MethodPut, "/api/nota/at/0",
		`{"date":"2024-03-01","item":"Kopi","quantity":3,"unitPrice":15000}`))
	require.Equal(t, http.StatusOK, rr.Code)
	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/totals", nil))
	totals = totalsResponse{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &totals))
	assert.Equal(t, int64(70000), totals.Overall, "cached totals follow the mutation")
	assert.Nil(t, totals.ForDate)

	rr = do(t, srv, httptest.NewRequest(http.MethodDelete, "/api/nota/at/0", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	var list listResponse
	rr = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/nota", nil))
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Roti", list.Records[0].Item)
	assert.Equal(t, 0, list.Records[0].Index)

	rr = do(t, srv, httptest.NewRequest(http.MethodDelete, "/api/nota/at/1", nil))
	assert.Equal(t, http.StatusConflict, rr.Code, "stale position")

	rr = do(t, srv, jsonRequest(http.MethodPut, "/api/nota/"+list.Records[0].ID,
		`{"date":"2024-03-02","item":"Roti","quantity":2,"unitPrice":25000}`))
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, srv, httptest.NewRequest(http.MethodDelete, "/api/nota/"+list.Records[0].ID, nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAPIErrors(t *testing.T) {
	srv, _ := newTestServer(t, 0)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"bad date filter", httptest.NewRequest(http.MethodGet, "/api/nota?date=01-03-2024", nil), http.StatusUnprocessableEntity},
		{"malformed json", jsonRequest(http.MethodPost, "/api/nota", `{"date":`), http.StatusUnprocessableEntity},
		{"fractional quantity", jsonRequest(http.MethodPost, "/api/nota", `{"date":"2024-03-01","quantity":1.5,"unitPrice":1000}`), http.StatusUnprocessableEntity},
		{"price below floor", jsonRequest(http.MethodPost, "/api/nota", `{"date":"2024-03-01","quantity":1,"unitPrice":999}`), http.StatusUnprocessableEntity},
		{"unknown id", httptest.NewRequest(http.MethodDelete, "/api/nota/missing", nil), http.StatusNotFound},
		{"non numeric index", httptest.NewRequest(http.MethodDelete, "/api/nota/at/first", nil), http.StatusUnprocessableEntity},
		{"index out of range", jsonRequest(http.MethodPut, "/api/nota/at/0", `{"date":"2024-03-01","quantity":1,"unitPrice":1000}`), http.StatusConflict},
		{"wrong method", httptest.NewRequest(http.MethodPatch, "/api/nota", nil), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, tt.req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestAPIFractionalPriceIsNotStored(t *testing.T) {
	srv, svc := newTestServer(t, 0)

	rr := do(t, srv, jsonRequest(http.MethodPost, "/api/nota", `{"date":"2024-03-01","quantity":2,"unitPrice":15000.5}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = do(t, srv, formRequest("/nota", notaForm("2024-03-01", "Kopi", "2", "15000,50")))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, rr.Body.String(), "Isian tidak valid.")

	assert.Equal(t, 0, svc.Len())
}

func TestRateLimitOnlyMutations(t *testing.T) {
	srv, _ := newTestServer(t, 2)

	for i := 0; i < 5; i++ {
		rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/nota", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	}

	body := `{"date":"2024-03-01","item":"Kopi","quantity":1,"unitPrice":1000}`
	for i := 0; i < 2; i++ {
		rr := do(t, srv, jsonRequest(http.MethodPost, "/api/nota", body))
		require.Equal(t, http.StatusCreated, rr.Code)
	}
	rr := do(t, srv, jsonRequest(http.MethodPost, "/api/nota", body))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, int64(1), srv.limiter.Rejected())
}

func TestShutdownMarksNotReady(t *testing.T) {
	srv, _ := newTestServer(t, 0)
	require.NoError(t, srv.Shutdown(context.Background()))

	rr := do(t, srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
