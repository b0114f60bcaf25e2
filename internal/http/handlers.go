package http

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"nota/internal/core"
	applog "nota/internal/log"
)

var templateFuncs = template.FuncMap{
	"rupiah":      core.FormatRupiah,
	"number":      core.FormatNumber,
	"displayDate": core.FormatDisplayDate,
	"dayName":     core.DayName,
	"inc":         func(i int) int { return i + 1 },
}

// pageData is shared by every page template.
type pageData struct {
	Title   string
	Active  string
	Overall int64

	Date    core.Date
	Day     *core.DayTotal
	Rows    []core.Indexed
	Daily   []core.DayTotal
	Filter  bool
	Empty   bool
	Form    formValues
	Record  core.Record
	Index   int
	Flash   string
	Error   string
	MinUnit int64
}

// formValues echoes what the user typed back into a rejected form.
type formValues struct {
	Date      string
	Item      string
	Quantity  string
	UnitPrice string
}

func formFromRecord(r core.Record) formValues {
	return formValues{
		Date:      r.Date.String(),
		Item:      r.Item,
		Quantity:  formatInt(r.Quantity),
		UnitPrice: formatInt(r.UnitPrice),
	}
}

func formFromRequest(r *http.Request) formValues {
	return formValues{
		Date:      r.PostFormValue("date"),
		Item:      r.PostFormValue("item"),
		Quantity:  r.PostFormValue("quantity"),
		UnitPrice: r.PostFormValue("unitPrice"),
	}
}

var flashMessages = map[string]string{
	"created": "Nota berhasil ditambahkan.",
	"updated": "Nota berhasil diperbarui.",
	"deleted": "Nota berhasil dihapus.",
}

// handleIndex renders the "Tambah Nota" page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	date := core.Today()
	if d, err := parseDateQuery(r); err == nil && d != nil {
		date = *d
	}
	data := pageData{
		Title: "Tambah Nota",
		Form:  formValues{Date: date.String(), Quantity: "1", UnitPrice: formatInt(core.MinUnitPrice)},
		Flash: flashMessages[r.URL.Query().Get("status")],
	}
	s.renderAdd(w, r, http.StatusOK, date, data)
}

func (s *Server) renderAdd(w http.ResponseWriter, r *http.Request, status int, date core.Date, data pageData) {
	t, err := s.totals(&date)
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	data.Active = "add"
	data.Date = date
	data.Day = t.Day
	data.Overall = t.Overall
	data.MinUnit = core.MinUnitPrice
	s.render(w, r, status, "index.html", data)
}

// handleManage renders the "Kelola Nota" page: the list with its original
// positions for one date, today unless ?date= is given. ?all=1 lists every
// date with the per-day totals.
func (s *Server) handleManage(w http.ResponseWriter, r *http.Request) {
	date, err := parseDateQuery(r)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	if date == nil && r.URL.Query().Get("all") == "" {
		today := core.Today()
		date = &today
	}
	rows, err := s.svc.List(date)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}
	t, err := s.totals(date)
	if err != nil {
		s.fail(w, r, err, applog.OpList)
		return
	}

	data := pageData{
		Title:   "Kelola Nota",
		Active:  "manage",
		Overall: t.Overall,
		Day:     t.Day,
		Rows:    rows,
		Filter:  date != nil,
		Empty:   s.svc.Len() == 0,
		Flash:   flashMessages[r.URL.Query().Get("status")],
	}
	if date != nil {
		data.Date = *date
	} else {
		data.Daily, err = s.svc.DailyTotals()
		if err != nil {
			s.fail(w, r, err, applog.OpList)
			return
		}
	}
	s.render(w, r, http.StatusOK, "kelola.html", data)
}

func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	rec, index, err := s.svc.Get(r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	s.renderEdit(w, r, http.StatusOK, rec, index, formFromRecord(rec), "")
}

func (s *Server) renderEdit(w http.ResponseWriter, r *http.Request, status int, rec core.Record, index int, form formValues, msg string) {
	t, err := s.totals(nil)
	if err != nil {
		s.fail(w, r, err, applog.OpRender)
		return
	}
	s.render(w, r, status, "edit.html", pageData{
		Title:   "Ubah Nota",
		Active:  "manage",
		Overall: t.Overall,
		Record:  rec,
		Index:   index,
		Form:    form,
		Error:   msg,
		MinUnit: core.MinUnitPrice,
	})
}

// handleCreate is submitCreate for the add form.
func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFields(r)
	if err != nil {
		if isHTMX(r) {
			ErrorResponse(statusFor(err), userMessage(err)).Write(w)
			return
		}
		date := core.Today()
		if d, perr := core.ParseDate(r.PostFormValue("date")); perr == nil {
			date = d
		}
		s.renderAdd(w, r, statusFor(err), date, pageData{
			Title: "Tambah Nota",
			Form:  formFromRequest(r),
			Error: userMessage(err),
		})
		return
	}

	rec, index, err := s.svc.Create(r.Context(), f)
	if err != nil {
		s.fail(w, r, err, applog.OpCreate)
		return
	}
	s.sl.LogNotaChange(r.Context(), applog.OpCreate, rec.ID, index, rec.Date.String(), rec.Total)

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerNotaChanged(applog.OpCreate, rec.Date).
			TriggerFormReset().
			TriggerSuccessNotification(flashMessages["created"] + " Total " + core.FormatRupiah(rec.Total)).
			Write(w)
		return
	}
	redirect(w, r, "/", rec.Date, "created")
}

// handleUpdate is submitEdit for the edit form.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	f, err := ParseFields(r)
	if err != nil {
		if isHTMX(r) {
			ErrorResponse(statusFor(err), userMessage(err)).Write(w)
			return
		}
		rec, index, gerr := s.svc.Get(id)
		if gerr != nil {
			s.fail(w, r, gerr, applog.OpUpdate)
			return
		}
		s.renderEdit(w, r, statusFor(err), rec, index, formFromRequest(r), userMessage(err))
		return
	}

	rec, err := s.svc.Update(r.Context(), id, f)
	if err != nil {
		s.fail(w, r, err, applog.OpUpdate)
		return
	}
	_, index, _ := s.svc.Get(id)
	s.sl.LogNotaChange(r.Context(), applog.OpUpdate, rec.ID, index, rec.Date.String(), rec.Total)

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerNotaChanged(applog.OpUpdate, rec.Date).
			Redirect(pageURL("/kelola", rec.Date, "updated")).
			Write(w)
		return
	}
	redirect(w, r, "/kelola", rec.Date, "updated")
}

// handleDelete is submitDelete for the manage list.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, index, err := s.svc.Get(id)
	if err != nil {
		s.fail(w, r, err, applog.OpDelete)
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err, applog.OpDelete)
		return
	}
	s.sl.LogNotaChange(r.Context(), applog.OpDelete, rec.ID, index, rec.Date.String(), rec.Total)

	if isHTMX(r) {
		// Positions after the removed row shift, so the list is reloaded.
		NewHTMXResponse().
			TriggerNotaChanged(applog.OpDelete, rec.Date).
			TriggerSuccessNotification(flashMessages["deleted"]).
			Write(w)
		return
	}
	redirect(w, r, "/kelola", rec.Date, "deleted")
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.sl.LogError(r.Context(), "Template render failed", err, applog.ComponentTemplate, applog.OpRender)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// fail answers a page or form request with the status matching err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.sl.LogError(r.Context(), "Nota request failed", err, applog.ComponentNota, op)
	} else {
		s.logger.WarnContext(r.Context(), "Nota request rejected",
			applog.FieldOperation, op, applog.FieldError, err.Error())
	}
	ErrorResponse(status, userMessage(err)).Write(w)
}

// redirect finishes a form post with Post/Redirect/Get.
func redirect(w http.ResponseWriter, r *http.Request, path string, date core.Date, status string) {
	http.Redirect(w, r, pageURL(path, date, status), http.StatusSeeOther)
}

func pageURL(path string, date core.Date, status string) string {
	q := url.Values{}
	q.Set("date", date.String())
	q.Set("status", status)
	return path + "?" + q.Encode()
}

// formatInt renders n for a number input, without grouping.
func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
