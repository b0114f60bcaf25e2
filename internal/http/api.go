package http

import (
	"net/http"

	"nota/internal/core"
	applog "nota/internal/log"
)

// recordJSON is the API view of a record together with its current position.
type recordJSON struct {
	Index     int    `json:"index"`
	ID        string `json:"id"`
	Date      string `json:"date"`
	Item      string `json:"item"`
	Quantity  int64  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	Total     int64  `json:"total"`
}

func toJSON(index int, r core.Record) recordJSON {
	return recordJSON{
		Index:     index,
		ID:        r.ID,
		Date:      r.Date.String(),
		Item:      r.Item,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
		Total:     r.Total,
	}
}

type listResponse struct {
	Records []recordJSON `json:"records"`
	Count   int          `json:"count"`
}

type dayTotalJSON struct {
	Date    string `json:"date"`
	DayName string `json:"dayName"`
	Total   int64  `json:"total"`
	Count   int    `json:"count"`
}

type totalsResponse struct {
	Overall int64         `json:"overall"`
	ForDate *dayTotalJSON `json:"forDate,omitempty"`
}

// apiList is listRecords.
func (s *Server) apiList(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpList)
		return
	}
	rows, err := s.svc.List(date)
	if err != nil {
		s.apiError(w, r, err, applog.OpList)
		return
	}
	resp := listResponse{Records: make([]recordJSON, 0, len(rows)), Count: len(rows)}
	for _, row := range rows {
		resp.Records = append(resp.Records, toJSON(row.Index, row.Record))
	}
	writeJSON(w, http.StatusOK, resp)
}

// apiTotals is getTotals.
func (s *Server) apiTotals(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpList)
		return
	}
	t, err := s.totals(date)
	if err != nil {
		s.apiError(w, r, err, applog.OpList)
		return
	}
	resp := totalsResponse{Overall: t.Overall}
	if t.Day != nil {
		resp.ForDate = &dayTotalJSON{
			Date:    t.Day.Date.String(),
			DayName: t.Day.DayName,
			Total:   t.Day.Total,
			Count:   t.Day.Count,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) apiCreate(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFields(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpCreate)
		return
	}
	rec, index, err := s.svc.Create(r.Context(), f)
	if err != nil {
		s.apiError(w, r, err, applog.OpCreate)
		return
	}
	s.sl.LogNotaChange(r.Context(), applog.OpCreate, rec.ID, index, rec.Date.String(), rec.Total)
	writeJSON(w, http.StatusCreated, toJSON(index, rec))
}

func (s *Server) apiUpdate(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFields(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpUpdate)
		return
	}
	id := r.PathValue("id")
	rec, err := s.svc.Update(r.Context(), id, f)
	if err != nil {
		s.apiError(w, r, err, applog.OpUpdate)
		return
	}
	_, index, _ := s.svc.Get(id)
	s.sl.LogNotaChange(r.Context(), applog.OpUpdate, rec.ID, index, rec.Date.String(), rec.Total)
	writeJSON(w, http.StatusOK, toJSON(index, rec))
}

func (s *Server) apiDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.apiError(w, r, err, applog.OpDelete)
		return
	}
	s.sl.LogNotaChange(r.Context(), applog.OpDelete, id, -1, "", 0)
	w.WriteHeader(http.StatusNoContent)
}

// apiUpdateAt is submitEdit addressed by position.
func (s *Server) apiUpdateAt(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpUpdate)
		return
	}
	f, err := ParseFields(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpUpdate)
		return
	}
	rec, err := s.svc.UpdateAt(r.Context(), index, f)
	if err != nil {
		s.apiError(w, r, err, applog.OpUpdate)
		return
	}
	s.sl.LogNotaChange(r.Context(), applog.OpUpdate, rec.ID, index, rec.Date.String(), rec.Total)
	writeJSON(w, http.StatusOK, toJSON(index, rec))
}

// apiDeleteAt is submitDelete addressed by position.
func (s *Server) apiDeleteAt(w http.ResponseWriter, r *http.Request) {
	index, err := parseIndex(r)
	if err != nil {
		s.apiError(w, r, err, applog.OpDelete)
		return
	}
	if err := s.svc.DeleteAt(r.Context(), index); err != nil {
		s.apiError(w, r, err, applog.OpDelete)
		return
	}
	s.sl.LogNotaChange(r.Context(), applog.OpDelete, "", index, "", 0)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.sl.LogError(r.Context(), "API request failed", err, applog.ComponentNota, op)
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
