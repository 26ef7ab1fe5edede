package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSend_DeliversNotification(t *testing.T) {
	var got notification
	var gotKeyName, gotKeyVal string

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKeyName = r.Header.Get("api_key_name")
		gotKeyVal = r.Header.Get("api_key_val")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding notification: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(upstream.Close)

	c := NewClient(upstream.URL, "/api/notify", "board-key", "s3cret")
	msg := Message{ID: "m-1", TopicID: 22, UserID: 865, Text: "move card 3 to done"}

	if err := c.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if got.Event != "new_message" {
		t.Errorf("event = %q, want %q", got.Event, "new_message")
	}
	if got.Message != msg {
		t.Errorf("message = %+v, want %+v", got.Message, msg)
	}
	if gotKeyName != "board-key" || gotKeyVal != "s3cret" {
		t.Errorf("api key headers = %q/%q, want board-key/s3cret", gotKeyName, gotKeyVal)
	}
}

func TestSend_Non2xxIsUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workspace not found", http.StatusNotFound)
	}))
	t.Cleanup(upstream.Close)

	c := NewClient(upstream.URL, "/api/notify", "k", "v")
	err := c.Send(context.Background(), Message{ID: "m-2", TopicID: 1, Text: "hello"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestSend_TransportFailureIsUpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	upstream.Close() // connection refused from here on

	c := NewClient(upstream.URL, "/api/notify", "k", "v")
	err := c.Send(context.Background(), Message{ID: "m-3", TopicID: 1, Text: "hello"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}
