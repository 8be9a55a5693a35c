package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
	"wikimind/internal/models"
)

// fakeAudioAPI speaks by prefixing text with an mp3 tag and "hears" by stripping it again,
// dropping case and punctuation the way a real recognizer tends to.
func fakeAudioAPI(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/v1/audio/speech":
			var body map[string]interface{}
			json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "tts-1", body["model"])
			assert.Equal(t, "mp3", body["response_format"])
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Write([]byte("ID3" + body["input"].(string)))

		case "/v1/audio/transcriptions":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			file, _, err := r.FormFile("file")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			audio, _ := io.ReadAll(file)
			w.Header().Set("Content-Type", "application/json")

			switch {
			case bytes.HasPrefix(audio, []byte("ID3")):
				heard := strings.Map(func(r rune) rune {
					if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
						return unicode.ToLower(r)
					}
					return -1
				}, string(audio[3:]))
				json.NewEncoder(w).Encode(map[string]string{"text": heard, "language": r.FormValue("language")})
			case bytes.HasPrefix(audio, []byte("RIFF")):
				json.NewEncoder(w).Encode(map[string]string{"text": "lang=" + r.FormValue("language")})
			default:
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"Invalid file format.","type":"invalid_request_error"}}`))
			}

		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"server error","type":"server_error"}}`))
		}
	}))
}

func testOpenAIOptions(url string) OpenAIOptions {
	return OpenAIOptions{APIKey: "sk-test", BaseURL: url + "/v1/", Timeout: 5 * time.Second}
}

func lexicalOverlap(want, got string) float64 {
	tokens := func(s string) []string {
		return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
	}
	heard := map[string]bool{}
	for _, w := range tokens(got) {
		heard[w] = true
	}
	expected := tokens(want)
	if len(expected) == 0 {
		return 0
	}
	hits := 0
	for _, w := range expected {
		if heard[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(expected))
}

func TestSynthesizeThenRecognize(t *testing.T) {
	server := fakeAudioAPI(t)
	defer server.Close()

	langs := testLanguages()
	opts := testOpenAIOptions(server.URL)
	out := NewOutputChannel(NewOpenAISynthesizer(opts, "tts-1", "alloy"), langs, logger.NewTestLogger(t))
	in := NewInputChannel(nil, NewOpenAIRecognizer(opts, "whisper-1"), langs, InputOptions{Logger: logger.NewTestLogger(t)})

	sentence := "Einstein is best known for developing the theory of relativity."
	audio, err := out.Synthesize(context.Background(), sentence, "en")
	require.NoError(t, err)

	text, err := in.Transcribe(context.Background(), models.VoiceCapture{
		RawAudio:     audio,
		LanguageCode: "en",
		Format:       models.AudioFormatMP3,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lexicalOverlap(sentence, text), 0.9)
}

func TestOpenAIRecognizer_SendsISOLanguage(t *testing.T) {
	server := fakeAudioAPI(t)
	defer server.Close()

	rec := NewOpenAIRecognizer(testOpenAIOptions(server.URL), "")
	text, err := rec.Transcribe(context.Background(), models.VoiceCapture{
		RawAudio: EncodeWAV(tone(0.5, 16000), 16000),
		Format:   models.AudioFormatWAV,
	}, "hi-IN")
	require.NoError(t, err)
	assert.Equal(t, "lang=hi", text)
}

func TestOpenAIRecognizer_Failures(t *testing.T) {
	server := fakeAudioAPI(t)

	rec := NewOpenAIRecognizer(testOpenAIOptions(server.URL), "whisper-1")
	_, err := rec.Transcribe(context.Background(), models.VoiceCapture{RawAudio: []byte("garbage")}, "en-US")
	assert.Equal(t, apperrors.ErrCodeUnintelligible, apperrors.CodeOf(err))

	server.Close()
	_, err = rec.Transcribe(context.Background(), models.VoiceCapture{RawAudio: []byte("ID3abc")}, "en-US")
	assert.Equal(t, apperrors.ErrCodeServiceError, apperrors.CodeOf(err))
}

func TestOpenAISynthesizer_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"server error","type":"server_error"}}`))
	}))
	defer server.Close()

	s := NewOpenAISynthesizer(testOpenAIOptions(server.URL), "", "")
	_, err := s.Synthesize(context.Background(), "hello", models.LanguageProfile{SpeechCode: "en-US"})
	assert.Equal(t, apperrors.ErrCodeSynthesisError, apperrors.CodeOf(err))
}

func TestISOLanguage(t *testing.T) {
	assert.Equal(t, "en", isoLanguage("en-US"))
	assert.Equal(t, "ja", isoLanguage(" JA-jp "))
	assert.Equal(t, "", isoLanguage(""))
}
