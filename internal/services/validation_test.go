package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type amountRequest struct {
	Reference string          `validate:"required,min=2"`
	Amount    decimal.Decimal `validate:"required,gt=0,lte=5000"`
}

func TestValidationHelper_ValidateStruct(t *testing.T) {
	vh := NewValidationHelper()

	t.Run("valid struct", func(t *testing.T) {
		valid := amountRequest{Reference: "INV-1", Amount: decimal.RequireFromString("0.01")}
		assert.NoError(t, vh.ValidateStruct(&valid))
	})

	t.Run("decimal bounds", func(t *testing.T) {
		over := amountRequest{Reference: "INV-1", Amount: decimal.RequireFromString("5000.01")}
		err := vh.ValidateStruct(&over)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 1)
		assert.Equal(t, "Amount", validationErrors[0].Field())
		assert.Equal(t, "lte", validationErrors[0].Tag())
	})

	t.Run("invalid struct - missing required fields", func(t *testing.T) {
		invalid := amountRequest{Reference: "I"}

		err := vh.ValidateStruct(&invalid)
		assert.Error(t, err)

		validationErrors, ok := err.(validator.ValidationErrors)
		assert.True(t, ok)
		assert.Len(t, validationErrors, 2) // Reference, Amount
	})
}

func TestSendErrorResponse(t *testing.T) {
	t.Run("error response without validation errors", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Something went wrong", http.StatusInternalServerError, nil)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Something went wrong", response.Error)
		assert.Nil(t, response.Details)
	})

	t.Run("error response with validation errors", func(t *testing.T) {
		vh := NewValidationHelper()
		validationErr := vh.ValidateStruct(&amountRequest{Reference: "I", Amount: decimal.NewFromInt(-1)})
		assert.Error(t, validationErr)

		w := httptest.NewRecorder()
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, validationErr)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Validation failed", response.Error)
		assert.Contains(t, response.Details, "Reference")
		assert.Equal(t, "Field Validation Failed on 'gt' tag", response.Details["Amount"])
	})

	t.Run("non validation error adds no details", func(t *testing.T) {
		w := httptest.NewRecorder()

		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, errors.New("unexpected EOF"))

		var response ErrorResponse
		err := json.Unmarshal(w.Body.Bytes(), &response)
		assert.NoError(t, err)
		assert.Equal(t, "Invalid request", response.Error)
		assert.Nil(t, response.Details)
	})
}

func TestSendJSON(t *testing.T) {
	w := httptest.NewRecorder()

	SendJSON(w, http.StatusCreated, map[string]string{"status": "RECEIVED"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"RECEIVED"}`, w.Body.String())
}
