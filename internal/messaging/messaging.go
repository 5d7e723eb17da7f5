package messaging

import (
	"context"
	"time"
)

const (
	ExecuteQueue    = "job_execute_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type ExecuteJobPayload struct {
	JobId int
}

type Publisher interface {
	PublishExecuteJobTask(ctx context.Context, payload ExecuteJobPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
