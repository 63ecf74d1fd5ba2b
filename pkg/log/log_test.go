package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	req := require.New(t)

	req.Equal(zerolog.DebugLevel, ParseLevel("DEBUG"))
	req.Equal(zerolog.WarnLevel, ParseLevel(" warning "))
	req.Equal(zerolog.InfoLevel, ParseLevel("whatever"))
}

func TestWith_AddsField(t *testing.T) {
	req := require.New(t)

	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(Config{Level: "debug", Output: &buf}))
	ctx = With(ctx, FieldClientID, "c-1")

	l := Ctx(ctx)
	l.Info().Msg("hello")

	var entry map[string]any
	req.NoError(json.Unmarshal(buf.Bytes(), &entry))
	req.Equal("c-1", entry[FieldClientID])
	req.Equal("hello", entry["message"])
}

func TestHTTPMiddleware_RequestID(t *testing.T) {
	req := require.New(t)

	var buf bytes.Buffer
	logger := New(Config{Level: "info", Output: &buf})

	var seen string
	h := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := Ctx(r.Context())
		l.Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(w, r)
	seen = w.Header().Get("X-Request-ID")

	req.Equal(http.StatusTeapot, w.Code)
	req.Equal("req-1", seen)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	req.Len(lines, 2)
	var done map[string]any
	req.NoError(json.Unmarshal(lines[1], &done))
	req.Equal("req-1", done[FieldRequestID])
	req.Equal(float64(http.StatusTeapot), done[FieldStatus])
}
