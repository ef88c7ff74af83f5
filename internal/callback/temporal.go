package callback

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.temporal.io/sdk/temporal"
)

// ActivityCompleter is the part of client.Client used to resolve an async activity.
type ActivityCompleter interface {
	CompleteActivity(ctx context.Context, taskToken []byte, result interface{}, err error) error
}

// TemporalEngine resolves activities that returned activity.ErrResultPending.
// Task tokens travel through queues and HTTP as unpadded base64url text.
type TemporalEngine struct {
	client ActivityCompleter
}

func NewTemporalEngine(c ActivityCompleter) *TemporalEngine {
	return &TemporalEngine{client: c}
}

func EncodeToken(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeToken(token string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyToken
	}
	return raw, nil
}

func (e *TemporalEngine) SendTaskSuccess(ctx context.Context, token string, output []byte) error {
	raw, err := DecodeToken(token)
	if err != nil {
		return err
	}
	return e.client.CompleteActivity(ctx, raw, json.RawMessage(output), nil)
}

func (e *TemporalEngine) SendTaskFailure(ctx context.Context, token, code, cause string) error {
	raw, err := DecodeToken(token)
	if err != nil {
		return err
	}
	appErr := temporal.NewNonRetryableApplicationError(cause, code, nil)
	return e.client.CompleteActivity(ctx, raw, nil, appErr)
}
