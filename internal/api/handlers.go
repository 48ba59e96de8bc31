// Package api implements the Lookup API (C7): synchronous REST read-through
// to the instrument catalog.
package api

import (
	"net/http"
	"strconv"

	"github.com/epic1st/marketfeed/internal/quote"
)

// Catalog is the subset of the instrument catalog the REST layer reads.
type Catalog interface {
	Get(symbol string) (quote.Quote, bool)
	GetByID(id int64) (quote.Quote, bool)
	Snapshot() map[string]quote.Quote
	Symbols() []string
}

// InternalAuthorizer guards the /internal/stock/* routes.
type InternalAuthorizer interface {
	Allow(r *http.Request) error
}

// Handler serves the REST surface from spec §6.
type Handler struct {
	catalog Catalog
	guard   InternalAuthorizer
}

// NewHandler creates a Handler. guard may be nil to allow all internal
// requests (development default).
func NewHandler(catalog Catalog, guard InternalAuthorizer) *Handler {
	return &Handler{catalog: catalog, guard: guard}
}

// Register wires every route onto mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/market/data", h.handleAllData)
	mux.HandleFunc("GET /api/v1/market/data/{symbol}", h.handleOneData)
	mux.HandleFunc("GET /api/v1/market/symbols", h.handleSymbols)
	mux.HandleFunc("GET /internal/stock/{symbol}", h.handleInternalBySymbol)
	mux.HandleFunc("GET /internal/stock/id/{id}", h.handleInternalByID)
}

func (h *Handler) handleAllData(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.catalog.Snapshot())
}

func (h *Handler) handleOneData(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	q, ok := h.catalog.Get(symbol)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, q)
}

type symbolsResponse struct {
	Symbols []string `json:"symbols"`
	Count   int      `json:"count"`
}

func (h *Handler) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols := h.catalog.Symbols()
	writeJSON(w, symbolsResponse{Symbols: symbols, Count: len(symbols)})
}

type stockRecord struct {
	ID           int64   `json:"id"`
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"currentPrice"`
}

// allowInternal applies the internal-route guard; on rejection it writes
// the response itself and returns false.
func (h *Handler) allowInternal(w http.ResponseWriter, r *http.Request) bool {
	if h.guard == nil {
		return true
	}
	if err := h.guard.Allow(r); err != nil {
		writeError(w, CodeInvalidArgument, err.Error())
		return false
	}
	return true
}

func (h *Handler) handleInternalBySymbol(w http.ResponseWriter, r *http.Request) {
	if !h.allowInternal(w, r) {
		return
	}
	symbol := r.PathValue("symbol")
	q, ok := h.catalog.Get(symbol)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, stockRecord{ID: q.ID, Symbol: q.Symbol, Name: q.Name, CurrentPrice: q.LastPrice})
}

func (h *Handler) handleInternalByID(w http.ResponseWriter, r *http.Request) {
	if !h.allowInternal(w, r) {
		return
	}
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, CodeInvalidArgument, "invalid id: "+idStr)
		return
	}
	q, ok := h.catalog.GetByID(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, stockRecord{ID: q.ID, Symbol: q.Symbol, Name: q.Name, CurrentPrice: q.LastPrice})
}
