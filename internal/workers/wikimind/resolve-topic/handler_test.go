package resolvetopic

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
	"wikimind/internal/models"
	"wikimind/pkg/registry"
)

// ==========================
// Mock Resolver
// ==========================

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolveTopic(ctx context.Context, title, languageCode string) (*models.RetrievedContext, error) {
	args := m.Called(ctx, title, languageCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RetrievedContext), args.Error(1)
}

// ==========================
// Test Helpers
// ==========================

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "wikimind-answer",
		ElementId:          "Activity_ResolveTopic",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, resolver Resolver) *Handler {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	h, err := NewHandler(HandlerOptions{
		Registry: reg,
		Resolver: resolver,
		Logger:   logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Tests
// ==========================

func TestExecute_Resolved(t *testing.T) {
	resolver := new(MockResolver)
	rc := models.NewRetrievedContext(models.Topic{Title: "Albert Einstein", LanguageCode: "en"},
		"Albert Einstein was a German-born theoretical physicist.", 4000)
	resolver.On("ResolveTopic", mock.Anything, "Albert Einstein", "en").Return(rc, nil)

	h := newTestHandler(t, resolver)
	out, err := h.Execute(context.Background(), &Input{Topic: "Albert Einstein", LanguageCode: "en"})

	require.NoError(t, err)
	assert.Equal(t, "Albert Einstein", out.TopicTitle)
	assert.Equal(t, "en", out.LanguageCode)
	assert.Contains(t, out.ContextText, "theoretical physicist")
	assert.False(t, out.ContextTruncated)
	resolver.AssertExpectations(t)
}

func TestExecute_AmbiguousKeepsCandidates(t *testing.T) {
	resolver := new(MockResolver)
	resolver.On("ResolveTopic", mock.Anything, "Mercury", "en").
		Return(nil, errors.NewAmbiguousError("Mercury", []string{"Mercury (planet)", "Mercury (element)"}))

	h := newTestHandler(t, resolver)
	_, err := h.Execute(context.Background(), &Input{Topic: "Mercury", LanguageCode: "en"})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAmbiguous))
	assert.Equal(t, []string{"Mercury (planet)", "Mercury (element)"}, errors.Candidates(err))

	bpmn := errors.ConvertToBPMNError(err.(*errors.StandardError))
	assert.Equal(t, 0, bpmn.Retries)
	assert.NotNil(t, bpmn.ErrorVariables["candidates"])
}

func TestParseInput(t *testing.T) {
	h := newTestHandler(t, new(MockResolver))

	tests := []struct {
		name      string
		variables map[string]interface{}
		wantErr   bool
	}{
		{"valid", map[string]interface{}{"topic": "Albert Einstein", "languageCode": "en"}, false},
		{"missing topic", map[string]interface{}{"languageCode": "en"}, true},
		{"empty topic", map[string]interface{}{"topic": "", "languageCode": "en"}, true},
		{"display name instead of code", map[string]interface{}{"topic": "Tokyo", "languageCode": "English"}, true},
		{"wrong type", map[string]interface{}{"topic": 42, "languageCode": "en"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, err := h.parseInput(createMockJob(1, tt.variables))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.variables["topic"], input.Topic)
		})
	}
}

func TestNewHandler_RequiresRegistryEntry(t *testing.T) {
	_, err := NewHandler(HandlerOptions{
		Registry: &registry.ActivityRegistry{},
		Resolver: new(MockResolver),
		Logger:   logger.NewNoOpLogger(),
	})
	assert.Error(t, err)
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	reg, err := registry.Default()
	require.NoError(t, err)

	_, err = NewHandler(HandlerOptions{
		Registry:     reg,
		Resolver:     new(MockResolver),
		CustomConfig: &Config{MaxJobsActive: 1},
		Logger:       logger.NewNoOpLogger(),
	})
	assert.ErrorContains(t, err, "timeout must be positive")
}
