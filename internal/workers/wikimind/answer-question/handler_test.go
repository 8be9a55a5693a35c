package answerquestion

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
	"wikimind/internal/inference"
	"wikimind/internal/models"
	"wikimind/internal/session"
	"wikimind/pkg/registry"
)

const einsteinIntro = `Albert Einstein (14 March 1879 – 18 April 1955) was a German-born theoretical physicist who is best known for developing the theory of relativity. Einstein also made important contributions to quantum mechanics. His mass–energy equivalence formula E = mc2, which arises from special relativity, has been called "the world's most famous equation". He received the 1921 Nobel Prize in Physics for "his services to theoretical physics, and especially for his discovery of the law of the photoelectric effect", a pivotal step in the development of quantum theory.`

// ==========================
// Mock Answerer
// ==========================

type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, question string, rc *models.RetrievedContext) (*models.Answer, error) {
	args := m.Called(ctx, question, rc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Answer), args.Error(1)
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
		ElementId:          "Activity_AnswerQuestion",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            2,
		Variables:          string(variablesJSON),
	}}
}

func newTestHandler(t *testing.T, answerer Answerer) *Handler {
	t.Helper()
	reg, err := registry.Default()
	require.NoError(t, err)

	h, err := NewHandler(HandlerOptions{
		Registry: reg,
		Answerer: answerer,
		Logger:   logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Tests
// ==========================

func TestExecute_WithExtractiveEngine(t *testing.T) {
	engine := inference.NewEngine(inference.NewExtractiveLoader(""), inference.Options{MaxContextChars: 4000})
	sess := session.New(session.Dependencies{Engine: engine, Logger: logger.NewNoOpLogger()})

	h := newTestHandler(t, sess)
	out, err := h.Execute(context.Background(), &Input{
		Question:     "What field was he known for?",
		ContextText:  einsteinIntro,
		TopicTitle:   "Albert Einstein",
		LanguageCode: "en",
	})

	require.NoError(t, err)
	assert.True(t, out.Answered)
	assert.Contains(t, out.Answer, "physics")
	assert.Greater(t, out.Confidence, 0.1)
	assert.Equal(t, out.Answer, einsteinIntro[out.AnswerStart:out.AnswerEnd])
}

func TestExecute_BlankQuestionIsNotAnswered(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Answer", mock.Anything, "", mock.Anything).Return(models.EmptyAnswer(nil), nil)

	h := newTestHandler(t, answerer)
	out, err := h.Execute(context.Background(), &Input{Question: "", ContextText: einsteinIntro})

	require.NoError(t, err)
	assert.False(t, out.Answered)
	assert.Zero(t, out.Confidence)
}

func TestExecute_PassesContext(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Answer", mock.Anything, "Where?", mock.MatchedBy(func(rc *models.RetrievedContext) bool {
		return rc.Topic.Title == "Ulm" && rc.Topic.LanguageCode == "de" && rc.Text == "Ulm liegt an der Donau."
	})).Return(&models.Answer{Text: "an der Donau", Confidence: 0.6, Start: 10, End: 22}, nil)

	h := newTestHandler(t, answerer)
	out, err := h.Execute(context.Background(), &Input{
		Question:     "Where?",
		ContextText:  "Ulm liegt an der Donau.",
		TopicTitle:   " Ulm ",
		LanguageCode: "de",
	})

	require.NoError(t, err)
	assert.Equal(t, "an der Donau", out.Answer)
	assert.Equal(t, 10, out.AnswerStart)
	answerer.AssertExpectations(t)
}

func TestExecute_ModelLoadFailureIsRetryable(t *testing.T) {
	answerer := new(MockAnswerer)
	answerer.On("Answer", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.NewModelLoadFailureError("huggingface", assert.AnError))

	h := newTestHandler(t, answerer)
	_, err := h.Execute(context.Background(), &Input{Question: "Who?", ContextText: einsteinIntro})

	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeModelLoadFailure))
	assert.True(t, errors.IsRetryableErrorCode(errors.CodeOf(err)))
}

func TestParseInput(t *testing.T) {
	h := newTestHandler(t, new(MockAnswerer))

	input, err := h.parseInput(createMockJob(7, map[string]interface{}{
		"question":     "When was he born?",
		"contextText":  einsteinIntro,
		"topicTitle":   "Albert Einstein",
		"languageCode": "en",
	}))
	require.NoError(t, err)
	assert.Equal(t, "When was he born?", input.Question)
	assert.Equal(t, "Albert Einstein", input.TopicTitle)

	_, err = h.parseInput(createMockJob(8, map[string]interface{}{"question": "Who?"}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidInput))
}
