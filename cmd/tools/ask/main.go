// Command ask resolves a topic and answers typed or spoken questions about it.
//
//	ask -topic "Albert Einstein" -question "What field was he known for?"
//	ask -topic Tokyo -lang Japanese -voice -speak answer.mp3
//	ask -suggest Einst
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"wikimind/internal/bootstrap"
	"wikimind/internal/common/config"
	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
	"wikimind/internal/models"
	"wikimind/internal/voice"
	"wikimind/internal/voice/microphone"
)

func main() {
	configPath := flag.String("config", "", "Config file (defaults to configs/config.yaml)")
	topic := flag.String("topic", "", "Topic to read before answering")
	lang := flag.String("lang", "en", "Language code or display name (e.g. en, Hindi)")
	question := flag.String("question", "", "Question to answer; reads questions from stdin when empty")
	useVoice := flag.Bool("voice", false, "Ask one question through the microphone (press Enter to stop)")
	audioPath := flag.String("audio", "", "Transcribe a recorded WAV or MP3 question instead of typing it")
	speakPath := flag.String("speak", "", "Write the spoken answer as mp3 to this path")
	partial := flag.String("suggest", "", "Print topic suggestions for a partial name and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.NewStructured(cfg.Logging.Level, "console")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := bootstrap.Options{
		Config: cfg,
		Logger: log,
		OnVoiceTransition: func(from, to voice.InputState) {
			if to == voice.Listening || to == voice.Recognizing {
				fmt.Fprintf(os.Stderr, "[%s]\n", to)
			}
		},
	}
	if *useVoice {
		mic, err := microphone.Open(cfg.Voice.Capture.SampleRate)
		if err != nil {
			fail(fmt.Errorf("microphone: %w", err))
		}
		defer mic.Close()
		opts.Capturer = mic
	}

	app, err := bootstrap.Build(ctx, opts)
	if err != nil {
		fail(err)
	}
	defer app.Close()

	code := *lang
	if profile, ok := app.Languages.ByDisplayName(*lang); ok {
		code = profile.RetrievalCode
	}

	if *partial != "" {
		titles, err := app.Session.Suggest(ctx, *partial, code)
		if err != nil {
			fail(err)
		}
		for _, t := range titles {
			fmt.Println(t)
		}
		return
	}

	if strings.TrimSpace(*topic) == "" {
		fail(apperrors.NewInvalidInputError("-topic is required"))
	}
	rc, err := app.Session.ResolveTopic(ctx, *topic, code)
	if err != nil {
		fail(err)
	}
	if rc.Truncated {
		fmt.Fprintf(os.Stderr, "note: only the first %d characters of %q are searched\n", cfg.Inference.MaxContextChars, rc.Topic.Title)
	}

	speak := func(a *models.Answer) {
		if *speakPath == "" || a.Text == "" {
			return
		}
		audio, err := app.Session.Speak(ctx, a.Text, code)
		if err != nil {
			printError(err)
			return
		}
		if err := os.WriteFile(*speakPath, audio, 0o644); err != nil {
			printError(err)
		}
	}

	switch {
	case *useVoice:
		if app.VoiceIn == nil {
			fail(apperrors.NewServiceError("voice input", fmt.Errorf("no OpenAI API key configured")))
		}
		go func() {
			bufio.NewReader(os.Stdin).ReadString('\n')
			app.VoiceIn.Stop()
		}()
		heard, answer, err := app.Session.AskByVoice(ctx, rc)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Q: %s\n", heard)
		printAnswer(os.Stdout, answer)
		speak(answer)

	case *audioPath != "":
		if app.VoiceIn == nil {
			fail(apperrors.NewServiceError("voice input", fmt.Errorf("no OpenAI API key configured")))
		}
		heard, err := transcribeFile(ctx, app.VoiceIn, *audioPath, code)
		if err != nil {
			fail(err)
		}
		answer, err := app.Session.Answer(ctx, heard, rc)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Q: %s\n", heard)
		printAnswer(os.Stdout, answer)
		speak(answer)

	case *question != "":
		answer, err := app.Session.Answer(ctx, *question, rc)
		if err != nil {
			fail(err)
		}
		printAnswer(os.Stdout, answer)
		speak(answer)

	default:
		fmt.Fprintf(os.Stderr, "Ask about %s (Ctrl-D to quit)\n", rc.Topic.Title)
		if err := answerLoop(ctx, app.Session, os.Stdin, os.Stdout, speak); err != nil {
			fail(err)
		}
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func transcribeFile(ctx context.Context, in *voice.InputChannel, path, languageCode string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.NewInvalidInputError(err.Error())
	}
	format := models.AudioFormatWAV
	if strings.HasSuffix(strings.ToLower(path), ".mp3") {
		format = models.AudioFormatMP3
	}
	return in.Transcribe(ctx, models.VoiceCapture{RawAudio: data, LanguageCode: languageCode, Format: format})
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, apperrors.Describe(err))
	if candidates := apperrors.Candidates(err); len(candidates) > 0 {
		fmt.Fprintln(os.Stderr, "Did you mean:")
		for _, c := range candidates {
			fmt.Fprintf(os.Stderr, "  %s\n", c)
		}
	}
}

func fail(err error) {
	printError(err)
	os.Exit(1)
}
