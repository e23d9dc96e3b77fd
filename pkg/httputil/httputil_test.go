package httputil

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/pkg/logger"
	"github.com/jbytow/coffeetica/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return env.Error
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"id": 12})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":12}`, rec.Body.String())
}

func TestWriteNoContent(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteNoContent(rec)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())
}

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/reviews/12", nil)

	WriteError(rec, req, apperrors.NotFound("review", "12"), testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	e := decodeEnvelope(t, rec)
	assert.Equal(t, "NOT_FOUND", e.Code)
	assert.Contains(t, e.Message, "review with id 12")
}

func TestWriteError_AppErrorFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)

	err := apperrors.InvalidFields("review is incomplete", map[string]string{"content": "is required"})
	WriteError(rec, req, err, testLogger())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Equal(t, map[string]string{"content": "is required"}, e.Fields)
}

func TestWriteError_WrappedConflict(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/reviews", nil)

	WriteError(rec, req, fmt.Errorf("create: %w", apperrors.Conflict("review exists")), testLogger())

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decodeEnvelope(t, rec).Code)
}

func TestWriteError_Sentinels(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{apperrors.ErrAlreadyExists, http.StatusConflict, "CONFLICT"},
		{apperrors.ErrInvalidInput, http.StatusBadRequest, "INVALID_INPUT"},
		{apperrors.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperrors.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			WriteError(rec, req, tt.err, testLogger())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeEnvelope(t, rec).Code)
		})
	}
}

func TestWriteError_IncludesCorrelationID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-1"))

	WriteError(rec, req, apperrors.Forbidden("not the owner"), testLogger())

	assert.Equal(t, "corr-1", decodeEnvelope(t, rec).RequestID)
}

type ratingBody struct {
	Rating  float64 `json:"rating" validate:"required,halfstar"`
	Content string  `json:"content" validate:"required"`
}

func TestWriteValidationError_Fields(t *testing.T) {
	err := validator.Validate(ratingBody{Rating: 3.3})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	WriteValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decodeEnvelope(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", e.Code)
	assert.Contains(t, e.Fields, "rating")
	assert.Contains(t, e.Fields, "content")
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, fmt.Errorf("decode request body: EOF"))

	e := decodeEnvelope(t, rec)
	assert.Equal(t, "INVALID_INPUT", e.Code)
	assert.Nil(t, e.Fields)
}

func TestParseID(t *testing.T) {
	rec := httptest.NewRecorder()
	id, ok := ParseID(rec, "coffeeId", "42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	for _, raw := range []string{"", "abc", "0", "-3"} {
		rec := httptest.NewRecorder()
		_, ok := ParseID(rec, "coffeeId", raw)
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_PARAMETER", decodeEnvelope(t, rec).Code)
	}
}

func TestDecodeError(t *testing.T) {
	e := DecodeError([]byte(`{"error":{"code":"CONFLICT","message":"dup","fields":{"rating":"is required"}}}`))
	require.NotNil(t, e)
	assert.Equal(t, "CONFLICT", e.Code)
	assert.Equal(t, "is required", e.Fields["rating"])

	assert.Nil(t, DecodeError([]byte("<html>bad gateway</html>")))
	assert.Nil(t, DecodeError([]byte(`{"id":1}`)))
}
