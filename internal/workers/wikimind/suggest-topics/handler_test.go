package suggesttopics

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wikimind/internal/common/config"
	"wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
	"wikimind/pkg/registry"
)

type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) Suggest(ctx context.Context, partial, languageCode string) ([]string, error) {
	args := m.Called(ctx, partial, languageCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)
	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:           key,
		Type:          TaskType,
		BpmnProcessId: "wikimind-suggest",
		CustomHeaders: "{}",
		Retries:       3,
		Variables:     string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, suggester Suggester, appConfig *config.Config) *Handler {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	h, err := NewHandler(HandlerOptions{
		AppConfig: appConfig,
		Registry:  reg,
		Suggester: suggester,
		Logger:    logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

func TestExecute_ReturnsSuggestions(t *testing.T) {
	suggester := new(MockSuggester)
	suggester.On("Suggest", mock.Anything, "Einst", "en").
		Return([]string{"Einstein", "Einsteinium", "Einstein ring"}, nil)

	h := newTestHandler(t, suggester, nil)
	out, err := h.Execute(context.Background(), &Input{Partial: "Einst"})

	require.NoError(t, err)
	assert.Equal(t, []string{"Einstein", "Einsteinium", "Einstein ring"}, out.Suggestions)
	suggester.AssertExpectations(t)
}

func TestExecute_EmptyIsNeverNil(t *testing.T) {
	suggester := new(MockSuggester)
	suggester.On("Suggest", mock.Anything, "", "de").Return(nil, nil)

	h := newTestHandler(t, suggester, nil)
	out, err := h.Execute(context.Background(), &Input{Partial: "", LanguageCode: "de"})

	require.NoError(t, err)
	assert.NotNil(t, out.Suggestions)
	assert.Empty(t, out.Suggestions)
}

func TestExecute_ProviderFailure(t *testing.T) {
	suggester := new(MockSuggester)
	suggester.On("Suggest", mock.Anything, "Tok", "en").
		Return(nil, errors.NewNetworkTimeoutError("opensearch", assert.AnError))

	h := newTestHandler(t, suggester, nil)
	_, err := h.Execute(context.Background(), &Input{Partial: "Tok"})

	assert.True(t, errors.IsCode(err, errors.ErrCodeNetworkTimeout))
}

func TestDefaultLanguageFollowsLanguageTable(t *testing.T) {
	appConfig := &config.Config{Languages: []config.LanguageConfig{{DisplayName: "Hindi", RetrievalCode: "hi"}}}
	suggester := new(MockSuggester)
	suggester.On("Suggest", mock.Anything, "Delhi", "hi").Return([]string{"Delhi"}, nil)

	h := newTestHandler(t, suggester, appConfig)
	assert.Equal(t, "hi", h.Config().DefaultLanguage)

	_, err := h.Execute(context.Background(), &Input{Partial: "Delhi"})
	require.NoError(t, err)
	suggester.AssertExpectations(t)
}

func TestParseInput(t *testing.T) {
	h := newTestHandler(t, new(MockSuggester), nil)

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{"partial": "Par", "languageCode": "fr"}))
	require.NoError(t, err)
	assert.Equal(t, &Input{Partial: "Par", LanguageCode: "fr"}, input)

	_, err = h.parseInput(createMockJob(2, map[string]interface{}{"languageCode": "fr"}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
