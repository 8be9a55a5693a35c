// Package microphone records push-to-talk questions from the default input device.
package microphone

import (
	"context"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const (
	channels        = 1
	framesPerBuffer = 1024
)

// Microphone captures mono float32 audio through PortAudio.
type Microphone struct {
	sampleRate int
	mu         sync.Mutex
}

// Open initializes PortAudio. Close must be called once the microphone is no longer needed.
func Open(sampleRate int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	return &Microphone{sampleRate: sampleRate}, nil
}

// Capture records until ctx is done and returns everything read so far.
func (m *Microphone) Capture(ctx context.Context) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	buffer := make([]float32, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(m.sampleRate), framesPerBuffer, buffer)
	if err != nil {
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	defer stream.Stop()

	samples := make([]float32, 0, m.sampleRate*10)
	for {
		select {
		case <-ctx.Done():
			return samples, nil
		default:
		}

		// Read blocks for one buffer, about 64ms at 16 kHz.
		if err := stream.Read(); err != nil && err != portaudio.InputOverflowed {
			return samples, fmt.Errorf("read input stream: %w", err)
		}
		samples = append(samples, buffer...)
	}
}

func (m *Microphone) Close() error {
	return portaudio.Terminate()
}
