package transcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hajimehoshi/go-mp3"
	"github.com/mjibson/go-dsp/wav"
)

const readChunk = 1 << 14

// decodeWAV reads 8-bit, 16-bit PCM or IEEE float WAV data at its native
// sample rate. A data chunk cut short keeps every whole sample present.
func decodeWAV(r io.Reader) (*AudioData, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav data: %w", err)
	}
	br := bytes.NewReader(raw)
	w, err := wav.New(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav header: %w", err)
	}
	channels := int(w.NumChannels)
	if channels <= 0 || w.SampleRate == 0 {
		return nil, fmt.Errorf("invalid wav header: %d channels at %d Hz", channels, w.SampleRate)
	}
	width, err := wavSampleWidth(w.AudioFormat, w.BitsPerSample)
	if err != nil {
		return nil, err
	}

	// wav.New stops right after the data chunk header, whose last four
	// bytes hold the declared chunk size. w.Samples rounds that size down
	// to a multiple of eight bytes, so it is not used.
	offset := len(raw) - br.Len()
	declared := int(binary.LittleEndian.Uint32(raw[offset-4 : offset]))
	available := min(declared, br.Len())
	total := available / width
	total -= total % channels
	if total == 0 {
		return nil, fmt.Errorf("wav data chunk holds no complete frames")
	}

	pcm := make([]float64, 0, total)
	for remaining := total; remaining > 0; {
		n := min(remaining, readChunk)
		data, err := w.ReadSamples(n)
		if err != nil {
			return nil, fmt.Errorf("failed to read wav samples: %w", err)
		}
		switch d := data.(type) {
		case []uint8:
			for _, v := range d {
				pcm = append(pcm, (float64(v)-128)/128)
			}
		case []int16:
			for _, v := range d {
				pcm = append(pcm, float64(v)/32768)
			}
		case []float32:
			for _, v := range d {
				pcm = append(pcm, float64(v))
			}
		default:
			return nil, fmt.Errorf("unexpected wav sample type %T", data)
		}
		remaining -= n
	}

	sampleRate := int(w.SampleRate)
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   frameDuration(len(pcm)/channels, sampleRate),
		Metadata: &StreamMetadata{
			Format:     "wav",
			Decoder:    "wav",
			Codec:      wavCodec(w.AudioFormat, w.BitsPerSample),
			SampleRate: sampleRate,
			Channels:   channels,
		},
	}, nil
}

// wavSampleWidth is the byte size of one sample as wav.ReadSamples reads it.
func wavSampleWidth(format, bits uint16) (int, error) {
	if format == 3 {
		if bits != 32 {
			return 0, fmt.Errorf("unsupported wav float size: %d bits", bits)
		}
		return 4, nil
	}
	switch bits {
	case 8, 16:
		return int(bits) / 8, nil
	}
	return 0, fmt.Errorf("unsupported wav sample size: %d bits", bits)
}

func wavCodec(format, bits uint16) string {
	if format == 3 {
		return "pcm_f32le"
	}
	if bits == 8 {
		return "pcm_u8"
	}
	return "pcm_s16le"
}

// decodeMP3 decodes MPEG-1/2 layer III audio. The decoder always yields
// 16-bit little-endian stereo.
func decodeMP3(r io.Reader) (*AudioData, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	var pcm []float64
	buf := make([]byte, readChunk)
	for {
		n, err := dec.Read(buf)
		n -= n % 2
		for i := 0; i < n; i += 2 {
			sample := int16(buf[i]) | int16(buf[i+1])<<8
			pcm = append(pcm, float64(sample)/32768)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode mp3: %w", err)
		}
	}
	pcm = pcm[:len(pcm)-len(pcm)%2]
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}

	sampleRate := dec.SampleRate()
	return &AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Channels:   2,
		Duration:   frameDuration(len(pcm)/2, sampleRate),
		Metadata: &StreamMetadata{
			Format:     "mp3",
			Decoder:    "mp3",
			Codec:      "mp3",
			SampleRate: sampleRate,
			Channels:   2,
		},
	}, nil
}

func frameDuration(frames, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}

// MixToMono averages interleaved samples across channels.
func MixToMono(pcm []float64, channels int) []float64 {
	if channels <= 1 {
		out := make([]float64, len(pcm))
		copy(out, pcm)
		return out
	}
	frames := len(pcm) / channels
	out := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += pcm[i*channels+c]
		}
		out[i] = sum / float64(channels)
	}
	return out
}
