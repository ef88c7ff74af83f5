package callback

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.temporal.io/sdk/temporal"

	"restaurant-system/internal/domain"
)

type recordingEngine struct {
	mu        sync.Mutex
	successes map[string][]byte
	failures  map[string]string
	err       error
}

func newRecordingEngine() *recordingEngine {
	return &recordingEngine{successes: map[string][]byte{}, failures: map[string]string{}}
}

func (e *recordingEngine) SendTaskSuccess(_ context.Context, token string, output []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.successes[token] = output
	return nil
}

func (e *recordingEngine) SendTaskFailure(_ context.Context, token, code, cause string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.failures[token] = code + ":" + cause
	return nil
}

func TestAdapter_SignalSuccess(t *testing.T) {
	t.Parallel()

	eng := newRecordingEngine()
	a := NewAdapter(eng, nil)

	err := a.SignalSuccess(context.Background(), "tok", map[string]string{"orderId": "o1"})
	if err != nil {
		t.Fatalf("signal: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(eng.successes["tok"], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["orderId"] != "o1" {
		t.Fatalf("unexpected payload: %v", got)
	}

	if err := a.SignalSuccess(context.Background(), " ", nil); !errors.Is(err, ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken, got %v", err)
	}
}

func TestAdapter_PropagatesEngineError(t *testing.T) {
	t.Parallel()

	eng := newRecordingEngine()
	eng.err = errors.New("unavailable")
	a := NewAdapter(eng, nil)

	if err := a.SignalSuccess(context.Background(), "tok", nil); !errors.Is(err, eng.err) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if err := a.SignalFailure(context.Background(), "tok", domain.FailureInfo{Error: "x", Cause: "y"}); !errors.Is(err, eng.err) {
		t.Fatalf("expected engine error, got %v", err)
	}
}

type fakeCompleter struct {
	token  []byte
	result interface{}
	err    error
}

func (f *fakeCompleter) CompleteActivity(_ context.Context, taskToken []byte, result interface{}, err error) error {
	f.token, f.result, f.err = taskToken, result, err
	return nil
}

func TestTemporalEngine(t *testing.T) {
	t.Parallel()

	raw := []byte{0x0a, 0xff, 0x10, 0x00, 0x7f}
	token := EncodeToken(raw)

	fc := &fakeCompleter{}
	eng := NewTemporalEngine(fc)

	if err := eng.SendTaskSuccess(context.Background(), token, []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("success: %v", err)
	}
	if string(fc.token) != string(raw) {
		t.Fatalf("token not decoded: %v", fc.token)
	}
	if msg, ok := fc.result.(json.RawMessage); !ok || string(msg) != `{"ok":true}` {
		t.Fatalf("unexpected result %#v", fc.result)
	}

	if err := eng.SendTaskFailure(context.Background(), token, "OrderNotFound", "no such order"); err != nil {
		t.Fatalf("failure: %v", err)
	}
	var appErr *temporal.ApplicationError
	if !errors.As(fc.err, &appErr) || appErr.Type() != "OrderNotFound" || !appErr.NonRetryable() {
		t.Fatalf("unexpected failure error %#v", fc.err)
	}

	if err := eng.SendTaskSuccess(context.Background(), "%%%", nil); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
