package websocket

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCheckOrigin(t *testing.T) {
	appURL := "https://fusion.example.com/dashboard"

	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"no origin header", "", false, true},
		{"app origin", "https://fusion.example.com", false, true},
		{"foreign host", "https://evil.example.org", false, false},
		{"other port", "https://fusion.example.com:8443", false, false},
		{"scheme mismatch", "http://fusion.example.com", false, false},
		{"localhost in development", "http://localhost:5173", true, true},
		{"loopback in development", "http://127.0.0.1:3000", true, true},
		{"localhost in production", "http://localhost:5173", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, NewCheckOrigin(appURL, tt.isDevelopment)(r))
		})
	}
}

func TestNewCheckOrigin_EmptyAppURLOnlyAllowsMissingOrigin(t *testing.T) {
	check := NewCheckOrigin("", false)

	r := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "://")
	assert.False(t, check(r))
}

func TestExtractOrigin(t *testing.T) {
	assert.Equal(t, "https://example.com:8443", extractOrigin("https://example.com:8443/path"))
	assert.Equal(t, "", extractOrigin("mailto:someone@example.com"))
	assert.Equal(t, "", extractOrigin(""))
}
