package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSWithOptions(t *testing.T) {
	tests := []struct {
		options         *CORSOptions
		expectedHeaders map[string]string
		name            string
		method          string
		expectedStatus  int
	}{
		{
			name:    "default options",
			method:  http.MethodGet,
			options: nil,
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":      "*",
				"Access-Control-Allow-Methods":     "GET,POST,PATCH,DELETE,OPTIONS",
				"Access-Control-Allow-Headers":     "Content-Type,Accept,Origin,Authorization,X-Request-Id",
				"Access-Control-Allow-Credentials": "true",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "custom options",
			method: http.MethodGet,
			options: &CORSOptions{
				AllowedOrigins: []string{"https://zoo.example.com"},
				AllowedMethods: []string{"GET"},
				AllowedHeaders: []string{"Content-Type"},
			},
			expectedHeaders: map[string]string{
				"Access-Control-Allow-Origin":  "https://zoo.example.com",
				"Access-Control-Allow-Methods": "GET",
				"Access-Control-Allow-Headers": "Content-Type",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:            "empty options set no headers",
			method:          http.MethodGet,
			options:         &CORSOptions{},
			expectedHeaders: map[string]string{},
			expectedStatus:  http.StatusOK,
		},
		{
			name:           "preflight short-circuits",
			method:         http.MethodOptions,
			options:        nil,
			expectedStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "http://example.com/animal", nil)
			rr := httptest.NewRecorder()

			handler := CORSWithOptions(tt.options)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			for header, want := range tt.expectedHeaders {
				assert.Equal(t, want, rr.Header().Get(header), header)
			}
			if tt.options != nil && len(tt.options.AllowedOrigins) == 0 {
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
				assert.Empty(t, rr.Header().Get("Access-Control-Allow-Credentials"))
			}
		})
	}
}
