// internal/common/aws/polly.go
package aws

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
)

type PollyClient struct {
	client *polly.Client
}

func NewPollyClient(ctx context.Context, region string) (*PollyClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &PollyClient{client: polly.NewFromConfig(cfg)}, nil
}

// SynthesizeMP3 renders text with the given voice and returns the whole mp3 stream.
func (p *PollyClient) SynthesizeMP3(ctx context.Context, text, voiceID, languageCode string) ([]byte, error) {
	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      types.VoiceId(voiceID),
	}
	if languageCode != "" {
		input.LanguageCode = types.LanguageCode(languageCode)
	}

	out, err := p.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, err
	}
	defer out.AudioStream.Close()

	return io.ReadAll(out.AudioStream)
}
