package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"codecollab-be/internal/constant"
	"codecollab-be/internal/dto"
	"codecollab-be/pkg/executor"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	result *executor.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, _, _ string) (*executor.Result, error) {
	return f.result, f.err
}

// frameSink records frames per connection and signals on every send.
type frameSink struct {
	mu     sync.Mutex
	frames map[uuid.UUID][][]byte
	sent   chan struct{}
}

func newFrameSink() *frameSink {
	return &frameSink{
		frames: make(map[uuid.UUID][][]byte),
		sent:   make(chan struct{}, 64),
	}
}

func (s *frameSink) SendTo(connId uuid.UUID, frame []byte) bool {
	s.mu.Lock()
	s.frames[connId] = append(s.frames[connId], frame)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return true
}

func (s *frameSink) waitForSend(t *testing.T) {
	t.Helper()
	select {
	case <-s.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a delivered frame")
	}
}

func (s *frameSink) framesFor(connId uuid.UUID) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames[connId]
}

func decodeExecuteResult(t *testing.T, frame []byte) dto.ExecuteResultPayload {
	t.Helper()
	var envelope dto.Envelope
	require.NoError(t, json.Unmarshal(frame, &envelope))
	require.Equal(t, constant.EventExecuteResult, envelope.Event)
	var payload dto.ExecuteResultPayload
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	return payload
}

func TestExecutionResultGoesToSubmitterOnly(t *testing.T) {
	sink := newFrameSink()
	svc := NewExecutionService(&fakeRunner{result: &executor.Result{
		Stdout: "hello\n",
		Stage:  executor.StageRun,
	}}, 2, time.Second, sink, nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	connId := uuid.New()
	require.NoError(t, svc.Submit(context.Background(), connId, constant.LanguagePython, "print('hello')"))
	sink.waitForSend(t)

	frames := sink.framesFor(connId)
	require.Len(t, frames, 1)
	payload := decodeExecuteResult(t, frames[0])
	assert.Equal(t, "hello\n", payload.Stdout)
	assert.Equal(t, executor.StageRun, payload.Stage)
	assert.Empty(t, payload.Stderr)
}

func TestSpawnFailureReportedAsDiagnostic(t *testing.T) {
	sink := newFrameSink()
	svc := NewExecutionService(&fakeRunner{err: errors.New("g++ not found")}, 1, time.Second, sink, nil, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	connId := uuid.New()
	require.NoError(t, svc.Submit(context.Background(), connId, constant.LanguageCpp, "int main(){}"))
	sink.waitForSend(t)

	frames := sink.framesFor(connId)
	require.Len(t, frames, 1)
	payload := decodeExecuteResult(t, frames[0])
	assert.Equal(t, executor.StageSpawn, payload.Stage)
	assert.Contains(t, payload.Stderr, "g++ not found")
	assert.Empty(t, payload.Stdout)
}

func TestSubmitRejectsWhenQueueSaturated(t *testing.T) {
	sink := newFrameSink()
	// Workers never started, so the queue (workers*8) fills up.
	svc := NewExecutionService(&fakeRunner{result: &executor.Result{}}, 1, time.Second, sink, nil, nopLogger{})

	connId := uuid.New()
	for i := 0; i < 8; i++ {
		require.NoError(t, svc.Submit(context.Background(), connId, constant.LanguagePython, "pass"))
	}
	err := svc.Submit(context.Background(), connId, constant.LanguagePython, "pass")
	assert.ErrorIs(t, err, ErrExecutionQueueFull)
}
