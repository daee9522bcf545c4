package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestClient points a client at the given handler with a short timeout.
func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		Endpoint: server.URL,
		APIKey:   "test-key",
		Model:    "test-model",
		Timeout:  timeout,
	})
	return client, server
}

func completionBody(content string) []byte {
	body, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return body
}

func TestClassify_Success(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write(completionBody(`  {"bad": false}  `))
	}, time.Second)

	reply, err := client.Classify(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if reply != `{"bad": false}` {
		t.Errorf("reply = %q, want trimmed JSON", reply)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("request model = %q, want test-model", gotReq.Model)
	}
	if gotReq.MaxTokens != 200 {
		t.Errorf("max_tokens = %d, want 200", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Content != "hello there" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
}

func TestClassify_Timeout(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write(completionBody("too late"))
	}, 50*time.Millisecond)

	_, err := client.Classify(context.Background(), "hello")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestClassify_NonSuccessStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}, time.Second)

	_, err := client.Classify(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for non-2xx status")
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformedReply) {
		t.Errorf("status error misclassified: %v", err)
	}
}

func TestClassify_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := NewClient(Config{Endpoint: url, APIKey: "k", Timeout: time.Second})
	_, err := client.Classify(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("refused connection misclassified as timeout: %v", err)
	}
}

func TestClassify_MalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>gateway error</html>"},
		{"no choices", `{"choices": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}, time.Second)

			_, err := client.Classify(context.Background(), "hello")
			if !errors.Is(err, ErrMalformedReply) {
				t.Fatalf("err = %v, want ErrMalformedReply", err)
			}
		})
	}
}

func TestClassify_ContextCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Classify(ctx, "hello")
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{APIKey: "k"})
	if c.config.Endpoint != DefaultEndpoint {
		t.Errorf("Endpoint = %q, want default", c.config.Endpoint)
	}
	if c.config.Model != DefaultModel {
		t.Errorf("Model = %q, want default", c.config.Model)
	}
	if c.config.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want default", c.config.Timeout)
	}
}
