package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_LengthAndUniqueness(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		id := NewID()
		assert.Len(t, id, 8)
		ids[id] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestWithID_and_ID_Roundtrip(t *testing.T) {
	ctx := WithID(context.Background(), "abc12345")
	id, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "abc12345", id)

	_, ok = ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok)
}

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"no header", "", false},
		{"plain id", "req-42_a", true},
		{"spaces rejected", "has space", false},
		{"newline rejected", "abc\ndef", false},
		{"too long rejected", strings.Repeat("a", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set(Header, tt.header)
			}
			id := FromRequest(r)
			if tt.keep {
				assert.Equal(t, tt.header, id)
			} else {
				assert.Len(t, id, 8)
			}
		})
	}
}

func TestHandler_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.InfoContext(WithID(context.Background(), "test1234"), "tick recorded", "session", "s1")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=test1234")
	assert.Contains(t, output, "session=s1")
}

func TestHandler_OmitsMissingID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil))).With("component", "sampler")

	logger.InfoContext(context.Background(), "no id")

	assert.NotContains(t, buf.String(), "correlation_id")
	assert.Contains(t, buf.String(), "component=sampler")
}
