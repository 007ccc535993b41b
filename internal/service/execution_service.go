package service

import (
	"context"
	"encoding/json"
	"time"

	"codecollab-be/internal/constant"
	"codecollab-be/internal/dto"
	"codecollab-be/internal/pkg/logger"
	"codecollab-be/pkg/events"
	"codecollab-be/pkg/executor"
	pktNats "codecollab-be/pkg/nats"

	"github.com/google/uuid"
)

// CodeRunner abstracts the sandbox so the worker loop can be tested without
// spawning real processes.
type CodeRunner interface {
	Run(ctx context.Context, language, source string) (*executor.Result, error)
}

type IExecutionService interface {
	// Start launches the worker pool. Workers exit when ctx is cancelled.
	Start(ctx context.Context)

	// Submit enqueues one execution. The job context should be the client's
	// connection context: a disconnect kills the in-flight child process.
	// Returns ErrExecutionQueueFull when the queue is saturated.
	Submit(ctx context.Context, connId uuid.UUID, language, source string) error
}

type execJob struct {
	ctx      context.Context
	connId   uuid.UUID
	language string
	source   string
}

// executionService bounds the sandbox: a fixed worker count caps simultaneous
// child processes across all rooms, and each job carries a deadline. Results
// go back to the submitting connection only.
type executionService struct {
	runner  CodeRunner
	jobs    chan execJob
	workers int
	timeout time.Duration
	sender  FrameSender
	natsPub *pktNats.Publisher
	logger  logger.ILogger
}

func NewExecutionService(
	runner CodeRunner,
	workers int,
	timeout time.Duration,
	sender FrameSender,
	natsPub *pktNats.Publisher,
	log logger.ILogger,
) IExecutionService {
	if workers < 1 {
		workers = 1
	}
	return &executionService{
		runner:  runner,
		jobs:    make(chan execJob, workers*8),
		workers: workers,
		timeout: timeout,
		sender:  sender,
		natsPub: natsPub,
		logger:  log,
	}
}

func (s *executionService) Start(ctx context.Context) {
	for i := 0; i < s.workers; i++ {
		go s.worker(ctx)
	}
}

func (s *executionService) Submit(ctx context.Context, connId uuid.UUID, language, source string) error {
	job := execJob{ctx: ctx, connId: connId, language: language, source: source}
	select {
	case s.jobs <- job:
		return nil
	default:
		return ErrExecutionQueueFull
	}
}

func (s *executionService) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.run(job)
		}
	}
}

func (s *executionService) run(job execJob) {
	if job.ctx.Err() != nil {
		// Client went away while the job sat in the queue.
		return
	}

	jobCtx, cancel := context.WithTimeout(job.ctx, s.timeout)
	defer cancel()

	result, err := s.runner.Run(jobCtx, job.language, job.source)
	if err != nil {
		// Spawn failure, unsupported language, timeout or disconnect. Never
		// lets the failure escape the job; the submitter gets a diagnostic.
		s.logger.Warn("ExecutionService", "Execution failed", map[string]interface{}{
			"language": job.language,
			"error":    err.Error(),
		})
		s.deliver(job.connId, dto.ExecuteResultPayload{
			Stderr: "execution failed: " + err.Error(),
			Stage:  executor.StageSpawn,
		})
		return
	}

	s.deliver(job.connId, dto.ExecuteResultPayload{
		Stdout: result.Stdout,
		Stderr: result.Stderr,
		Stage:  result.Stage,
	})

	if s.natsPub != nil {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pubCancel()
		if err := s.natsPub.Publish(pubCtx, events.NewExecutionFinished(job.language, result.Stage, result.ExitCode)); err != nil {
			s.logger.Warn("ExecutionService", "Failed to publish execution event", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (s *executionService) deliver(connId uuid.UUID, payload dto.ExecuteResultPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("ExecutionService", "Failed to marshal result", map[string]interface{}{"error": err.Error()})
		return
	}
	frame, err := EncodeFrame(constant.EventExecuteResult, raw)
	if err != nil {
		s.logger.Error("ExecutionService", "Failed to encode result frame", map[string]interface{}{"error": err.Error()})
		return
	}
	s.sender.SendTo(connId, frame)
}
