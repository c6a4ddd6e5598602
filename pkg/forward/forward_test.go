package forward

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/relayclaw/relayclaw/pkg/bus"
	"github.com/relayclaw/relayclaw/pkg/rules"
)

// fakeStorage is a minimal in-memory rules.BlobStorage.
type fakeStorage struct {
	blobs    map[string][]byte
	failRead bool
}

func newFakeStorage() *fakeStorage { return &fakeStorage{blobs: make(map[string][]byte)} }

func (f *fakeStorage) ReadBlob(key string) ([]byte, bool, error) {
	if f.failRead {
		return nil, false, errors.New("medium gone")
	}
	data, ok := f.blobs[key]
	return data, ok, nil
}

func (f *fakeStorage) WriteBlob(key string, data []byte) error {
	f.blobs[key] = data
	return nil
}

// recordingSink records every delivery it receives.
type recordingSink struct {
	mu    sync.Mutex
	rules []rules.ForwardRule
	fail  bool
}

func (s *recordingSink) Deliver(ctx context.Context, rule rules.ForwardRule, payload Payload) error {
	s.mu.Lock()
	s.rules = append(s.rules, rule)
	s.mu.Unlock()
	if s.fail {
		return errors.New("sink down")
	}
	return nil
}

func (s *recordingSink) destinations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r.Destination())
	}
	sort.Strings(out)
	return out
}

func TestPayloadChannelText(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{
			name:    "plain text",
			payload: Payload{DisplayName: "Ada", Handle: "ada", Body: "hello"},
			want:    "**Ada** (@ada): hello",
		},
		{
			name: "text with attachments",
			payload: Payload{
				DisplayName: "Ada", Handle: "ada", Body: "look",
				Attachments: []string{"https://cdn/x.png", "https://cdn/y.png"},
			},
			want: "**Ada** (@ada): look\nhttps://cdn/x.png\nhttps://cdn/y.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.payload.ChannelText(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPayloadWebhookContent(t *testing.T) {
	tests := []struct {
		name    string
		payload Payload
		want    string
	}{
		{
			name:    "body only",
			payload: Payload{Body: "hello"},
			want:    "hello",
		},
		{
			name:    "body and attachments",
			payload: Payload{Body: "look", Attachments: []string{"https://a", "https://b"}},
			want:    "look\nhttps://a\nhttps://b",
		},
		{
			name:    "empty body uses attachments alone",
			payload: Payload{Attachments: []string{"https://a", "https://b"}},
			want:    "https://a\nhttps://b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.payload.WebhookContent(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWebhookSinkPostsPayload(t *testing.T) {
	var got webhookBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.Client())
	rule := rules.NewWebhookForward(1, server.URL)
	payload := Payload{
		DisplayName: "Ada",
		Handle:      "ada",
		Attachments: []string{"https://cdn/x.png", "https://cdn/y.png"},
	}

	if err := sink.Deliver(context.Background(), rule, payload); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if got.Content != "https://cdn/x.png\nhttps://cdn/y.png" {
		t.Errorf("content %q", got.Content)
	}
	if got.Username != "Ada" {
		t.Errorf("username %q", got.Username)
	}
}

func TestWebhookSinkNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewWebhookSink(server.Client())
	err := sink.Deliver(context.Background(), rules.NewWebhookForward(1, server.URL), Payload{Body: "x"})
	if err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestRouterFanOut(t *testing.T) {
	store := rules.NewStore(newFakeStorage())
	store.Add(rules.NewChannelForward(1, 2))
	store.Add(rules.NewChannelForward(1, 3))
	store.Add(rules.NewChannelForward(9, 4)) // different source, must not match

	channelSink := &recordingSink{}
	router := NewRouter(store, channelSink, &recordingSink{})

	attempts := router.Forward(context.Background(), bus.InboundMessage{
		Channel: 1, Content: "hi", DisplayName: "Ada", Handle: "ada",
	})

	if attempts != 2 {
		t.Fatalf("expected 2 delivery attempts, got %d", attempts)
	}
	got := channelSink.destinations()
	if len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Errorf("delivered to %v, want [2 3]", got)
	}
}

func TestRouterSkipsKindsWithoutSink(t *testing.T) {
	store := rules.NewStore(newFakeStorage())
	store.Add(rules.NewChannelForward(1, 2))
	store.Add(rules.NewWebhookForward(1, "https://example.com/hook"))

	channelSink := &recordingSink{}
	router := NewRouter(store, channelSink, nil)

	attempts := router.Forward(context.Background(), bus.InboundMessage{Channel: 1, Content: "hi"})

	if attempts != 1 {
		t.Errorf("skipped rule counted as attempt: got %d, want 1", attempts)
	}
	if total := router.DeliveryAttempts(); total != 1 {
		t.Errorf("DeliveryAttempts = %d, want 1", total)
	}
	if got := channelSink.destinations(); len(got) != 1 || got[0] != "2" {
		t.Errorf("delivered to %v, want [2]", got)
	}
}

func TestRouterMixedKinds(t *testing.T) {
	store := rules.NewStore(newFakeStorage())
	store.Add(rules.NewChannelForward(1, 2))
	store.Add(rules.NewWebhookForward(1, "https://example.com/hook"))

	channelSink := &recordingSink{}
	webhookSink := &recordingSink{}
	router := NewRouter(store, channelSink, webhookSink)

	router.Forward(context.Background(), bus.InboundMessage{Channel: 1, Content: "hi"})

	if len(channelSink.destinations()) != 1 {
		t.Errorf("channel sink got %v", channelSink.destinations())
	}
	if len(webhookSink.destinations()) != 1 {
		t.Errorf("webhook sink got %v", webhookSink.destinations())
	}
}

func TestRouterFailuresAreIndependent(t *testing.T) {
	store := rules.NewStore(newFakeStorage())
	store.Add(rules.NewChannelForward(1, 2))
	store.Add(rules.NewWebhookForward(1, "https://example.com/hook"))

	channelSink := &recordingSink{fail: true}
	webhookSink := &recordingSink{}
	router := NewRouter(store, channelSink, webhookSink)

	attempts := router.Forward(context.Background(), bus.InboundMessage{Channel: 1, Content: "hi"})
	if attempts != 2 {
		t.Errorf("failing sink suppressed other deliveries: %d attempts", attempts)
	}
	if len(webhookSink.destinations()) != 1 {
		t.Errorf("webhook delivery missing after channel failure")
	}
}

func TestRouterUnreadableStoreForwardsNothing(t *testing.T) {
	storage := newFakeStorage()
	storage.failRead = true
	router := NewRouter(rules.NewStore(storage), &recordingSink{}, &recordingSink{})

	if attempts := router.Forward(context.Background(), bus.InboundMessage{Channel: 1}); attempts != 0 {
		t.Errorf("expected 0 attempts, got %d", attempts)
	}
}

func TestRouterNoMatchingRules(t *testing.T) {
	store := rules.NewStore(newFakeStorage())
	store.Add(rules.NewChannelForward(5, 6))

	sink := &recordingSink{}
	router := NewRouter(store, sink, &recordingSink{})

	if attempts := router.Forward(context.Background(), bus.InboundMessage{Channel: 1}); attempts != 0 {
		t.Errorf("expected 0 attempts, got %d", attempts)
	}
	if len(sink.destinations()) != 0 {
		t.Errorf("unexpected deliveries: %v", sink.destinations())
	}
}
