package voice

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// EncodeWAV packs mono float32 samples in [-1, 1] into a 16-bit PCM WAV file.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataLen := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataLen))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
	for _, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.Write(buf, binary.LittleEndian, int16(math.Round(float64(s)*math.MaxInt16)))
	}
	return buf.Bytes()
}

var errNotWAV = errors.New("not a 16-bit PCM wav file")

// DecodeWAV reads a 16-bit PCM WAV file and returns its first channel and sample rate.
func DecodeWAV(data []byte) ([]float32, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errNotWAV
	}

	var (
		channels   uint16
		sampleRate uint32
		bits       uint16
		pcm        []byte
	)
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errNotWAV
			}
			if binary.LittleEndian.Uint16(data[body:]) != 1 {
				return nil, 0, fmt.Errorf("%w: compressed format", errNotWAV)
			}
			channels = binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = binary.LittleEndian.Uint32(data[body+4:])
			bits = binary.LittleEndian.Uint16(data[body+14:])
		case "data":
			pcm = data[body : body+size]
		}
		off = body + size + size%2
	}

	if channels == 0 || bits != 16 || pcm == nil {
		return nil, 0, errNotWAV
	}

	frame := int(channels) * 2
	samples := make([]float32, 0, len(pcm)/frame)
	for i := 0; i+frame <= len(pcm); i += frame {
		v := int16(binary.LittleEndian.Uint16(pcm[i:]))
		samples = append(samples, float32(v)/math.MaxInt16)
	}
	return samples, int(sampleRate), nil
}

// rms is the root mean square level of samples.
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
