package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sastechlead/ips-payment-pipeline/internal/logging"
	"github.com/sastechlead/ips-payment-pipeline/internal/models"
	"github.com/sastechlead/ips-payment-pipeline/internal/services"
	"go.uber.org/zap"
)

const maxBodyBytes = 1_048_576

// Initiator creates a transaction from a validated request.
type Initiator interface {
	Initiate(ctx context.Context, req services.InitiateRequest) (*models.Transaction, error)
}

type IntakeHandler struct {
	service   Initiator
	validator *services.ValidationHelper
	logger    *logging.Logger
}

func NewIntakeHandler(service Initiator, logger *logging.Logger) *IntakeHandler {
	return &IntakeHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		logger:    logger.Named("intake_handler"),
	}
}

// Mount registers the intake routes on r.
func (h *IntakeHandler) Mount(r chi.Router) {
	r.Post("/api/tx/initiate", h.Initiate)
}

// Initiate accepts a new transaction
// @Summary Initiate transaction
// @Description Validate the request shape, store the transaction as RECEIVED and emit it to the pipeline
// @Tags Transactions
// @Accept json
// @Produce json
// @Param request body services.InitiateRequest true "Transaction request"
// @Success 201 {object} object{txnId=string,status=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /api/tx/initiate [post]
func (h *IntakeHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req services.InitiateRequest

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	tx, err := h.service.Initiate(r.Context(), req)
	if err != nil {
		h.logger.Error("failed to initiate transaction", zap.Error(err))
		services.SendErrorResponse(w, "Internal server error", http.StatusInternalServerError, nil)
		return
	}

	services.SendJSON(w, http.StatusCreated, map[string]any{
		"txnId":  tx.TxnID,
		"status": tx.Status,
	})
}
