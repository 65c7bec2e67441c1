package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		data     any
		wantCode int
		wantBody string
	}{
		{"TC-1: map", http.StatusOK, map[string]string{"status": "ok"}, http.StatusOK, "{\"status\":\"ok\"}\n"},
		{"TC-2: struct", http.StatusAccepted, struct{ ID string }{ID: "e1"}, http.StatusAccepted, "{\"ID\":\"e1\"}\n"},
		{"TC-3: nil writes no body", http.StatusNoContent, nil, http.StatusNoContent, ""},
		{"TC-4: unencodable value is a 500", http.StatusOK, map[string]any{"ch": make(chan int)}, http.StatusInternalServerError, "{\"error\":\"Internal Server Error\"}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			JSON(w, tt.code, tt.data)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		err      error
		wantMsg  string
		wantCode int
	}{
		{
			name:     "TC-1: AppError decides status and message",
			code:     http.StatusInternalServerError,
			err:      NewAppError(http.StatusBadRequest, "unknown trigger", errors.New("lookup failed")),
			wantMsg:  "unknown trigger",
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "TC-2: wrapped AppError is found",
			code:     http.StatusInternalServerError,
			err:      fmt.Errorf("ingest: %w", NewAppError(http.StatusUnauthorized, "unauthorized", nil)),
			wantMsg:  "unauthorized",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "TC-3: plain errors never leak",
			code:     http.StatusInternalServerError,
			err:      errors.New("dial tcp postgres://bridge:hunter2@db:5432"),
			wantMsg:  "Internal Server Error",
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Error(w, tt.code, tt.err)

			require.Equal(t, tt.wantCode, w.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}

	t.Run("TC-4: nil error writes nothing", func(t *testing.T) {
		w := httptest.NewRecorder()
		Error(w, http.StatusBadRequest, nil)
		assert.Zero(t, w.Body.Len())
	})
}

func TestAppError(t *testing.T) {
	cause := errors.New("token expired")
	err := NewAppError(http.StatusUnauthorized, "unauthorized", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "unauthorized: token expired", err.Error())
	assert.Equal(t, "unauthorized", NewAppError(http.StatusUnauthorized, "unauthorized", nil).Error())
}
