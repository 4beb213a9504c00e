package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/VishnuMK2006/invent-consolt/internal/domain"
	"github.com/VishnuMK2006/invent-consolt/internal/service"
	"github.com/VishnuMK2006/invent-consolt/internal/store"
)

const dateLayout = "2006-01-02"

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	sale, err := a.service.CreateSale(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"sale": sale})
}

func (a *API) handleQuoteSale(w http.ResponseWriter, r *http.Request) {
	var req domain.SaleQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	quote, err := a.service.QuoteSale(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": quote})
}

func (a *API) handleScan(w http.ResponseWriter, r *http.Request) {
	var req domain.ScanRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	result, err := a.service.ScanBarcode(r.Context(), req.Barcode)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleBarcodeLookup(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ScanBarcode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	sale, err := a.service.GetSale(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sale": sale})
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSaleFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	filter.Limit = parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	sales, err := a.service.ListSales(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSaleFilter(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	report, err := a.service.SalesReport(r.Context(), filter)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format"))) {
	case "csv":
		var buf bytes.Buffer
		if err := service.WriteSalesReportCSV(&buf, report); err != nil {
			a.writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reportFilename(r)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

// parseSaleFilter reads from/to as whole days (to is inclusive) or RFC 3339
// instants (to is exclusive).
func parseSaleFilter(r *http.Request) (domain.SaleFilter, error) {
	var filter domain.SaleFilter
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		from, _, err := parseBound(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: from: %v", store.ErrInvalidInput, err)
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		to, isDay, err := parseBound(raw)
		if err != nil {
			return filter, fmt.Errorf("%w: to: %v", store.ErrInvalidInput, err)
		}
		if isDay {
			to = to.AddDate(0, 0, 1)
		}
		filter.To = &to
	}
	return filter, nil
}

func parseBound(raw string) (time.Time, bool, error) {
	if day, err := time.Parse(dateLayout, raw); err == nil {
		return day.UTC(), true, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected YYYY-MM-DD or RFC 3339, got %q", raw)
	}
	return at.UTC(), false, nil
}

func reportFilename(r *http.Request) string {
	q := r.URL.Query()
	from := strings.TrimSpace(q.Get("from"))
	to := strings.TrimSpace(q.Get("to"))
	if from == "" && to == "" {
		return "sales-report.csv"
	}
	name := "sales-report"
	for _, part := range []string{from, to} {
		if _, err := time.Parse(dateLayout, part); err == nil {
			name += "-" + part
		}
	}
	return name + ".csv"
}
