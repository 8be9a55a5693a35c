package resolvetopic

import (
	"context"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"wikimind/internal/common/camunda"
	"wikimind/internal/common/config"
	"wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
	"wikimind/internal/common/metrics"
	"wikimind/internal/common/validation"
	"wikimind/internal/models"
	"wikimind/pkg/registry"
)

const TaskType = "wikimind-resolve-topic"

// Resolver is the part of the answering session this worker drives.
type Resolver interface {
	ResolveTopic(ctx context.Context, title, languageCode string) (*models.RetrievedContext, error)
}

type Handler struct {
	config   *Config
	logger   logger.Logger
	resolver Resolver
	schema   *validation.Schema
	errors   *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Registry     *registry.ActivityRegistry
	Resolver     Resolver
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("%s: resolver is required", TaskType)
	}

	activity, ok := opts.Registry.Find(TaskType)
	if !ok {
		return nil, fmt.Errorf("%s is not in the activity registry", TaskType)
	}
	schema, err := validation.Compile(activity.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TaskType, err)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}

	return &Handler{
		config:   workerConfig,
		logger:   log,
		resolver: opts.Resolver,
		schema:   schema,
		errors:   errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) TaskType() string {
	return TaskType
}

func (h *Handler) Config() *Config {
	return h.config
}

func (h *Handler) WorkerOptions() camunda.WorkerOptions {
	return camunda.WorkerOptions{MaxJobsActive: h.config.MaxJobsActive, Timeout: h.config.Timeout}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("Processing topic resolution", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
		"worker":             TaskType,
	})

	input, err := h.parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
}

// Execute resolves the topic. AMBIGUOUS failures carry the candidate titles.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	rc, err := h.resolver.ResolveTopic(ctx, input.Topic, input.LanguageCode)
	if err != nil {
		return nil, err
	}
	return &Output{
		TopicTitle:       rc.Topic.Title,
		LanguageCode:     rc.Topic.LanguageCode,
		ContextText:      rc.Text,
		ContextTruncated: rc.Truncated,
	}, nil
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidInputError("failed to parse job variables: " + err.Error())
	}

	result := h.schema.Validate(variables)
	if !result.Valid {
		return nil, errors.NewInvalidInputError(fmt.Sprintf("validation errors: %v", result.GetErrorMessages()))
	}

	return &Input{
		Topic:        variables["topic"].(string),
		LanguageCode: variables["languageCode"].(string),
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	variables := map[string]interface{}{
		"topicTitle":       output.TopicTitle,
		"languageCode":     output.LanguageCode,
		"contextText":      output.ContextText,
		"contextTruncated": output.ContextTruncated,
	}

	request, err := client.NewCompleteJobCommand().JobKey(job.GetKey()).VariablesFromMap(variables)
	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	if _, err := request.Send(ctx); err != nil {
		h.logger.Error("Failed to complete job", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
			"worker": TaskType,
		})
		return
	}

	h.logger.Info("Topic resolved", map[string]interface{}{
		"jobKey":    job.GetKey(),
		"topic":     output.TopicTitle,
		"truncated": output.ContextTruncated,
		"worker":    TaskType,
	})
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.CodeOf(err))).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
