package http

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/stats"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, ownerID int64) {
	rng, err := ParseDateRange(r.URL.Query())
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	summary, err := s.stats.Summary(r.Context(), ownerID, rng)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"summary": summary}).Write(w)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request, ownerID int64) {
	q := r.URL.Query()
	typ, err := ParseTypeParam(q)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	rng, err := ParseDateRange(q)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	breakdown, err := s.stats.CategoryBreakdown(r.Context(), ownerID, typ, rng)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	if breakdown.Categories == nil {
		breakdown.Categories = []core.CategoryStat{}
	}
	NewJSONResponse().Body(breakdown).Write(w)
}

func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request, ownerID int64) {
	year := QueryInt(r.URL.Query(), "year", s.now().Year())
	months, err := s.stats.MonthlySeries(r.Context(), ownerID, year)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	NewJSONResponse().Body(map[string]any{"year": year, "months": months}).Write(w)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request, ownerID int64) {
	q := r.URL.Query()
	period := stats.ParsePeriod(q.Get("period"))
	trends, err := s.stats.TrendSeries(r.Context(), ownerID, period, QueryInt(q, "limit", stats.DefaultTrendLimit))
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	if trends == nil {
		trends = []core.TrendBucket{}
	}
	NewJSONResponse().Body(map[string]any{"period": period, "trends": trends}).Write(w)
}

func (s *Server) handleTopTransactions(w http.ResponseWriter, r *http.Request, ownerID int64) {
	q := r.URL.Query()
	typ, err := ParseTypeParam(q)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	top, err := s.stats.TopTransactions(r.Context(), ownerID, typ, QueryInt(q, "limit", stats.DefaultTopLimit))
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	if top == nil {
		top = []core.TopTransaction{}
	}
	NewJSONResponse().Body(map[string]any{"transactions": top}).Write(w)
}

type overviewBody struct {
	Summary    core.Summary           `json:"summary"`
	Categories core.CategoryBreakdown `json:"categories"`
	Year       int                    `json:"year"`
	Months     []core.MonthlyBucket   `json:"months"`
	Top        []core.TopTransaction  `json:"topTransactions"`
}

// handleOverview builds the dashboard payload with the independent views
// computed concurrently. The first failure cancels the rest.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request, ownerID int64) {
	q := r.URL.Query()
	rng, err := ParseDateRange(q)
	if err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	year := QueryInt(q, "year", s.now().Year())
	expense := core.Expense

	var body overviewBody
	body.Year = year
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		body.Summary, err = s.stats.Summary(ctx, ownerID, rng)
		return err
	})
	g.Go(func() error {
		var err error
		body.Categories, err = s.stats.CategoryBreakdown(ctx, ownerID, &expense, rng)
		return err
	})
	g.Go(func() error {
		var err error
		body.Months, err = s.stats.MonthlySeries(ctx, ownerID, year)
		return err
	})
	g.Go(func() error {
		var err error
		body.Top, err = s.stats.TopTransactions(ctx, ownerID, &expense, 5)
		return err
	})
	if err := g.Wait(); err != nil {
		s.writeError(w, r, log.OpAggreg, err)
		return
	}
	if body.Categories.Categories == nil {
		body.Categories.Categories = []core.CategoryStat{}
	}
	if body.Top == nil {
		body.Top = []core.TopTransaction{}
	}
	NewJSONResponse().Body(body).Write(w)
}
