package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/models"
)

type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

func newOpenAIClient(o OpenAIOptions) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithMaxRetries(o.MaxRetries),
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(o.Timeout))
	}
	return openai.NewClient(opts...)
}

// OpenAIRecognizer transcribes speech with the audio transcription endpoint.
type OpenAIRecognizer struct {
	client openai.Client
	model  string
}

func NewOpenAIRecognizer(o OpenAIOptions, model string) *OpenAIRecognizer {
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &OpenAIRecognizer{client: newOpenAIClient(o), model: model}
}

func (r *OpenAIRecognizer) Transcribe(ctx context.Context, capture models.VoiceCapture, speechCode string) (string, error) {
	format := capture.Format
	if format == "" {
		format = models.AudioFormatWAV
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(capture.RawAudio), "question."+string(format), format.ContentType()),
		Model: openai.AudioModel(r.model),
	}
	if lang := isoLanguage(speechCode); lang != "" {
		params.Language = openai.String(lang)
	}

	res, err := r.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest {
			return "", apperrors.NewUnintelligibleError("recognizer rejected the audio")
		}
		return "", apperrors.NewServiceError("openai transcription", err)
	}
	return res.Text, nil
}

// OpenAISynthesizer renders speech with the text-to-speech endpoint.
type OpenAISynthesizer struct {
	client openai.Client
	model  string
	voice  string
}

func NewOpenAISynthesizer(o OpenAIOptions, model, voice string) *OpenAISynthesizer {
	if model == "" {
		model = string(openai.SpeechModelTTS1)
	}
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &OpenAISynthesizer{client: newOpenAIClient(o), model: model, voice: voice}
}

func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string, profile models.LanguageProfile) ([]byte, error) {
	resp, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, apperrors.NewSynthesisError("openai speech", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewSynthesisError("read openai speech", err)
	}
	if len(audio) == 0 {
		return nil, apperrors.NewSynthesisError(fmt.Sprintf("openai speech returned no audio for %s", profile.SpeechCode), nil)
	}
	return audio, nil
}

// isoLanguage reduces a tag such as "en-US" to its ISO-639-1 part.
func isoLanguage(speechCode string) string {
	lang, _, _ := strings.Cut(strings.TrimSpace(speechCode), "-")
	return strings.ToLower(lang)
}
