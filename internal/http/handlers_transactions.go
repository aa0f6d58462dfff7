package http

import (
	"io"
	"mime"
	"net/http"
	"sync/atomic"

	"finanzas/internal/core"
	"finanzas/internal/importer"
	"finanzas/internal/log"
	"finanzas/internal/services"
)

type importBody struct {
	Text                   string `json:"text"`
	DefaultExpenseCategory int64  `json:"default_expense_category"`
	DefaultIncomeCategory  int64  `json:"default_income_category"`
}

// handleImport accepts either a JSON body or the raw statement as
// text/plain, with the default categories then taken from the query.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, ownerID int64) {
	var body importBody
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "text/plain" {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.importMaxBytes))
		if err != nil {
			s.writeError(w, r, log.OpImport, err)
			return
		}
		q := r.URL.Query()
		body = importBody{
			Text:                   string(raw),
			DefaultExpenseCategory: int64(QueryInt(q, "default_expense_category", 0)),
			DefaultIncomeCategory:  int64(QueryInt(q, "default_income_category", 0)),
		}
	} else if err := DecodeJSON(w, r, s.importMaxBytes, &body); err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}

	report, err := s.transactions.Import(r.Context(), importer.Request{
		OwnerID:                ownerID,
		Text:                   body.Text,
		DefaultExpenseCategory: body.DefaultExpenseCategory,
		DefaultIncomeCategory:  body.DefaultIncomeCategory,
	})
	if err != nil {
		s.writeError(w, r, log.OpImport, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.imports, 1)
	atomic.AddInt64(&s.appMetrics.importedRows, int64(report.ImportedCount))

	NewJSONResponse().Body(map[string]any{
		"message": msgImportCompleted,
		"report":  report,
	}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, ownerID int64) {
	var in services.CreateInput
	if err := DecodeJSON(w, r, jsonMaxBytes, &in); err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Notes = sanitizeInput(in.Notes)
	in.Date = core.NormalizeDate(string(in.Date))

	t, err := s.transactions.Create(r.Context(), ownerID, in)
	if err != nil {
		s.writeError(w, r, log.OpCreate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.created, 1)

	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"message":     msgCreated,
		"transaction": t,
	}).Write(w)
}

type paginationBody struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, ownerID int64) {
	q := r.URL.Query()
	f, err := ParseTransactionFilter(q)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	page, err := s.transactions.List(r.Context(), ownerID, f,
		QueryInt(q, "page", 1), QueryInt(q, "limit", services.DefaultPageSize))
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}

	NewJSONResponse().Body(map[string]any{
		"transactions": page.Transactions,
		"pagination": paginationBody{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages,
		},
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, ownerID int64) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		BadRequestError(msgInvalidID).Write(w)
		return
	}
	t, err := s.transactions.Get(r.Context(), ownerID, id)
	if err != nil {
		s.writeError(w, r, log.OpRead, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"transaction": t}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, ownerID int64) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		BadRequestError(msgInvalidID).Write(w)
		return
	}
	var in services.CreateInput
	if err := DecodeJSON(w, r, jsonMaxBytes, &in); err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	in.Description = sanitizeInput(in.Description)
	in.Notes = sanitizeInput(in.Notes)
	in.Date = core.NormalizeDate(string(in.Date))

	t, err := s.transactions.Update(r.Context(), ownerID, id, in)
	if err != nil {
		s.writeError(w, r, log.OpUpdate, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.updated, 1)
	NewJSONResponse().Body(map[string]any{
		"message":     msgUpdated,
		"transaction": t,
	}).Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, ownerID int64) {
	id, err := ParsePathID(r, "id")
	if err != nil {
		BadRequestError(msgInvalidID).Write(w)
		return
	}
	if err := s.transactions.Delete(r.Context(), ownerID, id); err != nil {
		s.writeError(w, r, log.OpDelete, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.deleted, 1)
	NewJSONResponse().Body(map[string]any{"message": msgDeleted}).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, ownerID int64) {
	typ, err := ParseTypeParam(r.URL.Query())
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	cats, err := s.transactions.Categories(r.Context(), ownerID, typ)
	if err != nil {
		s.writeError(w, r, log.OpList, err)
		return
	}
	if cats == nil {
		cats = []core.Category{}
	}
	NewJSONResponse().Body(map[string]any{"categories": cats}).Write(w)
}
