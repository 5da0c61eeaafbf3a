package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// completionServer returns an httptest server that replies to every request
// with the given chat-completion content.
func completionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(`{"choices":[{"message":{"content":"` + content + `"}}]}`))
	}))
}

func newTestCompletionEmbedder(url string) *CompletionEmbedder {
	return NewCompletionEmbedder(CompletionEmbedderConfig{
		APIKey: "test-key",
		URL:    url,
		Model:  "test-model",
	})
}

func TestCompletionEmbedder_ParsesNumericList(t *testing.T) {
	srv := completionServer(t, "0.12, -0.5, 3.25, 0.0", http.StatusOK)
	defer srv.Close()

	vec, err := newTestCompletionEmbedder(srv.URL).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	want := []float32{0.12, -0.5, 3.25, 0}
	if len(vec) != len(want) {
		t.Fatalf("expected %d values, got %d (%v)", len(want), len(vec), vec)
	}
	for i := range want {
		if vec[i] != want[i] {
			t.Errorf("vec[%d] = %v, want %v", i, vec[i], want[i])
		}
	}
}

func TestCompletionEmbedder_SkipsNonNumericTokens(t *testing.T) {
	srv := completionServer(t, "Here you go: 1.5, oops, 2.5", http.StatusOK)
	defer srv.Close()

	vec, err := newTestCompletionEmbedder(srv.URL).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}
	// "Here you go: 1.5" does not parse as a number; only 2.5 survives.
	if len(vec) != 1 || vec[0] != 2.5 {
		t.Errorf("vec = %v, want [2.5]", vec)
	}
}

func TestCompletionEmbedder_NoNumbersIsError(t *testing.T) {
	srv := completionServer(t, "I cannot do that", http.StatusOK)
	defer srv.Close()

	if _, err := newTestCompletionEmbedder(srv.URL).Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for reply with no numeric tokens")
	}
}

func TestCompletionEmbedder_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"boom"}}`))
	}))
	defer srv.Close()

	if _, err := newTestCompletionEmbedder(srv.URL).Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on HTTP 500")
	}
}

func TestCompletionEmbedder_EmptyTextIsNoop(t *testing.T) {
	// No server needed: empty input short-circuits.
	vec, err := newTestCompletionEmbedder("http://unused.invalid").Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("Embed(\"\") error: %v", err)
	}
	if vec != nil {
		t.Errorf("expected nil vector for empty text, got %v", vec)
	}
}

func TestParseVector(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"plain list", "1,2,3", 3},
		{"spaced list", " 0.1 , 0.2 , 0.3 ", 3},
		{"mixed garbage", "a, 1, b, 2", 2},
		{"all garbage", "a, b, c", 0},
		{"empty", "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseVector(tt.input); len(got) != tt.want {
				t.Errorf("parseVector(%q) = %v, want %d values", tt.input, got, tt.want)
			}
		})
	}
}
