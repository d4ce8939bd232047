package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStructuredLogger(t *testing.T) {
	cases := []struct {
		name   string
		status int
		level  string
		msg    string
	}{
		{"Success", http.StatusOK, "INFO", "request completed"},
		{"Rejected", http.StatusUnprocessableEntity, "WARN", "request rejected"},
		{"Server Error", http.StatusInternalServerError, "ERROR", "request failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Arrange
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))
			router := chi.NewRouter()
			router.Use(NewStructuredLogger(logger))
			router.Get("/accounts/{accountId}/wallet", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			// Act
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/accounts/acc-1/wallet", nil))

			// Assert
			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tc.level, line["level"])
			assert.Equal(t, tc.msg, line["msg"])
			assert.Equal(t, "/accounts/{accountId}/wallet", line["route"])
			assert.Equal(t, float64(tc.status), line["status"])
		})
	}
}
