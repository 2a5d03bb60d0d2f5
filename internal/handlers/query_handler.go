package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/sastechlead/ips-payment-pipeline/internal/services"
	"go.uber.org/zap"
)

// TransactionReader is the read side of the pipeline stores.
type TransactionReader interface {
	List(ctx context.Context, filter services.ListFilter) (*services.TransactionPage, error)
	Get(ctx context.Context, txnID string) (*services.TransactionDetail, error)
	Events(ctx context.Context, txnID string) ([]models.TxnEvent, error)
}

type QueryHandler struct {
	service TransactionReader
	logger  *logging.Logger
}

func NewQueryHandler(service TransactionReader, logger *logging.Logger) *QueryHandler {
	return &QueryHandler{
		service: service,
		logger:  logger.Named("query_handler"),
	}
}

// Mount registers the read-only routes on r.
func (h *QueryHandler) Mount(r chi.Router) {
	r.Get("/api/tx", h.List)
	r.Get("/api/tx/{txnId}", h.Get)
	r.Get("/api/tx/{txnId}/events", h.Events)
}

// List returns a filtered page of transactions
// @Summary List transactions
// @Tags Transactions
// @Produce json
// @Param status query string false "RECEIVED, VALIDATED, REJECTED, COMPLETED or FAILED"
// @Param from query string false "RFC 3339 time or YYYY-MM-DD"
// @Param to query string false "RFC 3339 time or YYYY-MM-DD"
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(20)
// @Success 200 {object} services.TransactionPage
// @Failure 400 {object} services.ErrorResponse
// @Router /api/tx [get]
func (h *QueryHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		services.SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
		return
	}

	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list transactions failed", zap.Error(err))
		services.SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}
	services.SendJSON(w, http.StatusOK, page)
}

// Get returns a transaction with its ledger entries and notifications
// @Summary Transaction detail
// @Tags Transactions
// @Produce json
// @Param txnId path string true "Transaction ID"
// @Success 200 {object} services.TransactionDetail
// @Failure 404 {object} services.ErrorResponse
// @Router /api/tx/{txnId} [get]
func (h *QueryHandler) Get(w http.ResponseWriter, r *http.Request) {
	txnID := chi.URLParam(r, "txnId")

	detail, err := h.service.Get(r.Context(), txnID)
	if errors.Is(err, services.ErrTransactionNotFound) {
		services.SendErrorResponse(w, "Transaction not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		h.logger.Error("get transaction failed", zap.String("txn_id", txnID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to fetch transaction", http.StatusInternalServerError, nil)
		return
	}
	services.SendJSON(w, http.StatusOK, detail)
}

// Events returns the validation timeline of a transaction
// @Summary Transaction events
// @Tags Transactions
// @Produce json
// @Param txnId path string true "Transaction ID"
// @Success 200 {object} object{events=[]models.TxnEvent}
// @Router /api/tx/{txnId}/events [get]
func (h *QueryHandler) Events(w http.ResponseWriter, r *http.Request) {
	txnID := chi.URLParam(r, "txnId")

	events, err := h.service.Events(r.Context(), txnID)
	if err != nil {
		h.logger.Error("get events failed", zap.String("txn_id", txnID), zap.Error(err))
		services.SendErrorResponse(w, "Failed to fetch events", http.StatusInternalServerError, nil)
		return
	}
	services.SendJSON(w, http.StatusOK, map[string]any{"events": events})
}

func parseListFilter(r *http.Request) (services.ListFilter, error) {
	q := r.URL.Query()
	var filter services.ListFilter

	if raw := q.Get("status"); raw != "" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return filter, errors.New("status must be one of RECEIVED, VALIDATED, REJECTED, COMPLETED, FAILED")
		}
		filter.Status = status
	}

	var err error
	if filter.From, err = parseTimeParam(q.Get("from")); err != nil {
		return filter, errors.New("from must be an RFC 3339 time or a YYYY-MM-DD date")
	}
	if filter.To, err = parseTimeParam(q.Get("to")); err != nil {
		return filter, errors.New("to must be an RFC 3339 time or a YYYY-MM-DD date")
	}

	if filter.Page, err = parseIntParam(q.Get("page")); err != nil {
		return filter, errors.New("page must be a positive integer")
	}
	if filter.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		return filter, errors.New("limit must be a positive integer")
	}
	return filter, nil
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}
