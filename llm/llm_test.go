package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func reply(w http.ResponseWriter, content string) {
	json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
}

func testClient(srv *httptest.Server) *Client {
	return New(Options{
		BaseURL:     srv.URL + "/v1",
		Model:       "openclaw",
		System:      "You are a helpful voice assistant.",
		Temperature: 0.7,
		MaxTokens:   1024,
		HistoryMax:  6,
	})
}

func TestQuerySendsSystemAndUser(t *testing.T) {
	var got chatCompletionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		reply(w, "  hello back  ")
	}))
	defer srv.Close()

	c := testClient(srv)
	answer, err := c.Query(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if answer != "hello back" {
		t.Errorf("answer = %q, want trimmed reply", answer)
	}
	if got.Model != "openclaw" {
		t.Errorf("model = %q", got.Model)
	}
	if got.Temperature != 0.7 || got.MaxTokens != 1024 {
		t.Errorf("sampling params not sent: %+v", got)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "hello" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestHistoryAccumulatesAndCaps(t *testing.T) {
	var lastMessages []chatMessage
	turn := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionsRequest
		json.NewDecoder(r.Body).Decode(&req)
		lastMessages = req.Messages
		turn++
		reply(w, fmt.Sprintf("answer %d", turn))
	}))
	defer srv.Close()

	c := testClient(srv) // HistoryMax 6 = 3 turns

	for i := 1; i <= 5; i++ {
		if _, err := c.Query(context.Background(), fmt.Sprintf("question %d", i)); err != nil {
			t.Fatal(err)
		}
	}

	if c.HistoryLen() != 6 {
		t.Errorf("history len = %d, want capped at 6", c.HistoryLen())
	}

	// Turn 5's request carried system + 3 prior turns + the new user message.
	if len(lastMessages) != 1+6+1 {
		t.Fatalf("turn 5 sent %d messages", len(lastMessages))
	}
	// Oldest turns dropped: history starts at question 2's exchange.
	if lastMessages[1].Content != "question 2" {
		t.Errorf("oldest retained = %q, want question 2", lastMessages[1].Content)
	}
	if lastMessages[len(lastMessages)-1].Content != "question 5" {
		t.Errorf("new user message = %q", lastMessages[len(lastMessages)-1].Content)
	}
}

func TestFailedQueryLeavesNoHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.Query(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on 503")
	}
	if c.HistoryLen() != 0 {
		t.Errorf("history len = %d after failed query, want 0", c.HistoryLen())
	}
}

func TestCancelledQueryReturnsContextError(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		select {
		case <-r.Context().Done():
		case <-unblock:
		}
	}))
	defer srv.Close()
	// Release the handler before srv.Close waits on it.
	defer close(unblock)

	c := testClient(srv)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	_, err := c.Query(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if c.HistoryLen() != 0 {
		t.Error("cancelled query recorded history")
	}
}

func TestEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.Query(context.Background(), "hello"); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestReset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, "ok")
	}))
	defer srv.Close()

	c := testClient(srv)
	if _, err := c.Query(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
	if c.HistoryLen() == 0 {
		t.Fatal("history empty after query")
	}
	c.Reset()
	if c.HistoryLen() != 0 {
		t.Error("history survives Reset")
	}
}

func TestDefaultTimeoutApplied(t *testing.T) {
	c := New(Options{BaseURL: "http://localhost:0"})
	if c.httpClient.Timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s default", c.httpClient.Timeout)
	}
}
