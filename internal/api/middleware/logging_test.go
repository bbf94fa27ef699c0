package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRequestLogger — middleware логирует метод, путь, статус и размер ответа.
func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("not found"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("не удалось разобрать лог: %v", err)
	}

	if entry["method"] != "POST" {
		t.Errorf("method = %v, ожидается POST", entry["method"])
	}
	if entry["path"] != "/graphql" {
		t.Errorf("path = %v, ожидается /graphql", entry["path"])
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v, ожидается 404", entry["status"])
	}
	if entry["bytes"] != float64(len("not found")) {
		t.Errorf("bytes = %v, ожидается %d", entry["bytes"], len("not found"))
	}
	// 4xx логируется на уровне WARN
	if entry["level"] != "WARN" {
		t.Errorf("level = %v, ожидается WARN", entry["level"])
	}
}

// TestResponseWriter_Flush — обёртка пробрасывает Flush для streaming-ответов.
func TestResponseWriter_Flush(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	var _ http.Flusher = rw

	rw.Flush()

	if !rec.Flushed {
		t.Error("Flush не дошёл до оригинального ResponseWriter")
	}
}
