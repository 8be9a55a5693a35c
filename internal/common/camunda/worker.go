package camunda

import (
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"wikimind/internal/common/logger"
)

// JobHandler is implemented by every wikimind worker package.
type JobHandler interface {
	TaskType() string
	WorkerOptions() WorkerOptions
	Handle(client worker.JobClient, job entities.Job)
}

// WorkerOptions mirrors the per-worker section of the configuration.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// StartWorker opens a job worker for handler's task type.
func (c *Client) StartWorker(handler JobHandler, log logger.Logger) *Worker {
	taskType := handler.TaskType()
	opts := handler.WorkerOptions()
	jobWorker := c.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	log.Info("Worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})

	return &Worker{worker: jobWorker, logger: log, taskType: taskType}
}

func (w *Worker) TaskType() string {
	return w.taskType
}

// Stop closes the job worker and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker", map[string]interface{}{"taskType": w.taskType})
	w.worker.Close()
	w.worker.AwaitClose()
}
