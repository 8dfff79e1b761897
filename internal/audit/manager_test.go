package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
)

type stubRecorder struct {
	events []Event
	err    error
}

func (s *stubRecorder) Append(ctx context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func newTestManager(rec Recorder) *Manager {
	return &Manager{
		store:  rec,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestHandleEventTaskStoresEvent(t *testing.T) {
	rec := &stubRecorder{}
	m := newTestManager(rec)

	event := NewEvent(EventLoginSucceeded, "admin", "127.0.0.1", "test-agent")
	body, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}

	if err := m.handleEventTask(context.Background(), asynq.NewTask(taskTypeAuthEvent, body)); err != nil {
		t.Fatalf("handleEventTask returned error: %v", err)
	}
	if len(rec.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(rec.events))
	}
	got := rec.events[0]
	if got.ID != event.ID || got.Type != EventLoginSucceeded || got.Username != "admin" {
		t.Fatalf("unexpected event: %#v", got)
	}
}

func TestHandleEventTaskSkipsRetryOnBadPayload(t *testing.T) {
	m := newTestManager(&stubRecorder{})

	err := m.handleEventTask(context.Background(), asynq.NewTask(taskTypeAuthEvent, []byte("not-json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	err = m.handleEventTask(context.Background(), asynq.NewTask(taskTypeAuthEvent, []byte(`{"type":"logout"}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for missing username, got %v", err)
	}
}

func TestHandleEventTaskPropagatesStoreError(t *testing.T) {
	storeErr := errors.New("redis down")
	m := newTestManager(&stubRecorder{err: storeErr})

	body, _ := json.Marshal(NewEvent(EventLogout, "admin", "127.0.0.1", ""))
	err := m.handleEventTask(context.Background(), asynq.NewTask(taskTypeAuthEvent, body))
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestNewManagerValidatesInput(t *testing.T) {
	if _, err := NewManager("redis://127.0.0.1:6379/0", nil, nil); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewManager("://bad", &stubRecorder{}, nil); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestNewEventFillsIdentity(t *testing.T) {
	a := NewEvent(EventLoginFailed, "admin", "10.0.0.1", "")
	b := NewEvent(EventLoginFailed, "admin", "10.0.0.1", "")
	if a.ID == "" || a.ID == b.ID {
		t.Fatalf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
	if a.OccurredAt.IsZero() {
		t.Fatal("OccurredAt must be set")
	}
}
