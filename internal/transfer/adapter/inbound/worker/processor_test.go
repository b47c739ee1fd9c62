package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthanhphan/go-resumable-transfer/internal/transfer/adapter/outbound/queue"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessor_HandleAssemble(t *testing.T) {
	var got string
	p := NewProcessor(func(_ context.Context, id string) error {
		got = id
		return nil
	})

	data, err := json.Marshal(queue.AssemblePayload{SessionID: "s1"})
	require.NoError(t, err)
	require.NoError(t, p.Handler().ProcessTask(context.Background(), asynq.NewTask(queue.AssembleTask, data)))
	assert.Equal(t, "s1", got)
}

func TestProcessor_ErrorsPropagateForRetry(t *testing.T) {
	boom := errors.New("redis down")
	p := NewProcessor(func(context.Context, string) error { return boom })

	data, _ := json.Marshal(queue.AssemblePayload{SessionID: "s1"})
	err := p.Handler().ProcessTask(context.Background(), asynq.NewTask(queue.AssembleTask, data))
	assert.ErrorIs(t, err, boom)
}

func TestProcessor_BadPayloadSkipsRetry(t *testing.T) {
	p := NewProcessor(func(context.Context, string) error {
		t.Fatal("handler must not run")
		return nil
	})

	err := p.Handler().ProcessTask(context.Background(), asynq.NewTask(queue.AssembleTask, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
