package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

// buildWAV encodes interleaved int16 samples as a canonical PCM WAV file.
func buildWAV(samples []int16, channels, sampleRate int) []byte {
	var buf bytes.Buffer
	dataSize := len(samples) * 2
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func nativeOnly() *Decoder {
	cfg := DefaultDecoderConfig()
	cfg.FFmpegFallback = false
	return NewDecoder(cfg)
}

func TestDecodeReaderWAVStereo(t *testing.T) {
	// Left at +0.5, right at -0.25 for 1000 frames.
	samples := make([]int16, 2000)
	for i := 0; i < len(samples); i += 2 {
		samples[i] = 16384
		samples[i+1] = -8192
	}
	data := buildWAV(samples, 2, 8000)

	audio, err := nativeOnly().DecodeReader(context.Background(), bytes.NewReader(data), "wav")
	if err != nil {
		t.Fatalf("DecodeReader: %v", err)
	}
	if audio.SampleRate != 8000 || audio.Channels != 2 {
		t.Fatalf("got %d Hz, %d channels", audio.SampleRate, audio.Channels)
	}
	if len(audio.PCM) != 2000 {
		t.Fatalf("expected 2000 samples, got %d", len(audio.PCM))
	}
	if audio.PCM[0] != 0.5 || audio.PCM[1] != -0.25 {
		t.Errorf("unexpected first frame %v, %v", audio.PCM[0], audio.PCM[1])
	}
	if audio.Duration != 125*time.Millisecond {
		t.Errorf("expected 125ms, got %v", audio.Duration)
	}
	if audio.Metadata.Decoder != "wav" || audio.Metadata.Codec != "pcm_s16le" {
		t.Errorf("unexpected metadata %+v", audio.Metadata)
	}

	mono := audio.Mono()
	if len(mono) != 1000 {
		t.Fatalf("expected 1000 mono samples, got %d", len(mono))
	}
	if math.Abs(mono[10]-0.125) > 1e-12 {
		t.Errorf("expected mono 0.125, got %v", mono[10])
	}
}

func TestDecodeFileWAV(t *testing.T) {
	samples := make([]int16, 441)
	for i := range samples {
		samples[i] = int16(10000 * math.Sin(2*math.Pi*float64(i)/44.1))
	}
	path := filepath.Join(t.TempDir(), "tone.WAV")
	if err := os.WriteFile(path, buildWAV(samples, 1, 44100), 0o644); err != nil {
		t.Fatal(err)
	}

	audio, err := nativeOnly().DecodeFile(context.Background(), path)
	if err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if audio.Channels != 1 || len(audio.PCM) != 441 {
		t.Fatalf("got %d channels, %d samples", audio.Channels, len(audio.PCM))
	}
	if audio.Metadata.Source != path {
		t.Errorf("expected source %q, got %q", path, audio.Metadata.Source)
	}
}

func TestDecodeTruncatedWAV(t *testing.T) {
	tests := []struct {
		name     string
		samples  int
		channels int
		cut      int
		want     int
	}{
		{"mid sample", 100, 1, 51, 74},
		{"last byte", 20000, 1, 2, 19999},
		{"partial stereo frame", 100, 2, 2, 98},
		{"odd length intact", 441, 1, 0, 441},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildWAV(make([]int16, tt.samples), tt.channels, 8000)
			data = data[:len(data)-tt.cut]

			audio, err := nativeOnly().DecodeReader(context.Background(), bytes.NewReader(data), "wav")
			if err != nil {
				t.Fatalf("DecodeReader: %v", err)
			}
			if len(audio.PCM) != tt.want {
				t.Errorf("expected %d samples, got %d", tt.want, len(audio.PCM))
			}
		})
	}
}

func TestDecodeEmptyWAVData(t *testing.T) {
	data := buildWAV(make([]int16, 4), 1, 8000)
	data = data[:len(data)-7] // leaves half a sample

	if _, err := nativeOnly().DecodeReader(context.Background(), bytes.NewReader(data), "wav"); err == nil {
		t.Fatal("expected error when no whole sample remains")
	}
}

func TestDecodeInvalidWAV(t *testing.T) {
	_, err := nativeOnly().DecodeReader(context.Background(), strings.NewReader("not a wav file at all"), "wav")
	if err == nil {
		t.Fatal("expected error for invalid wav data")
	}
}

func TestUnsupportedFormatWithoutFallback(t *testing.T) {
	d := nativeOnly()

	_, err := d.DecodeReader(context.Background(), strings.NewReader("fLaC"), "flac")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	_, err = d.DecodeFile(context.Background(), "/nonexistent/track.ogg")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestParseFFprobeOutput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *AudioMetadata
		wantErr bool
	}{
		{
			name: "flac stream",
			input: `{"streams":[{"codec_type":"audio","codec_name":"flac","sample_rate":"44100",
				"channels":2,"duration":"183.5","bit_rate":"900000","codec_long_name":"FLAC"}]}`,
			want: &AudioMetadata{SampleRate: 44100, Channels: 2, Codec: "flac", Duration: 183.5, Bitrate: 900000, Format: "FLAC"},
		},
		{
			name:    "no streams",
			input:   `{"streams":[]}`,
			wantErr: true,
		},
		{
			name:    "video stream",
			input:   `{"streams":[{"codec_type":"video","channels":2}]}`,
			wantErr: true,
		},
		{
			name:    "bad channel count",
			input:   `{"streams":[{"codec_type":"audio","channels":0}]}`,
			wantErr: true,
		},
		{
			name:    "malformed",
			input:   `{"streams":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFFprobeOutput([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != *tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBuildFFmpegArgs(t *testing.T) {
	cfg := DefaultDecoderConfig()
	cfg.MaxDuration = 90 * time.Second
	args := NewDecoder(cfg).buildFFmpegArgs(22050)

	want := []string{"-vn", "-f", "f64le", "-ac", "1", "-ar", "22050", "-t", "90.00", "-v", "error"}
	if !slices.Equal(args, want) {
		t.Errorf("got %v, want %v", args, want)
	}

	args = NewDecoder(DefaultDecoderConfig()).buildFFmpegArgs(0)
	if slices.Contains(args, "-ar") || slices.Contains(args, "-t") {
		t.Errorf("unexpected rate or duration args: %v", args)
	}
}

func TestBytesToFloat64(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, []float64{0.25, -1})
	buf.WriteByte(0x7f) // partial trailing sample

	got := bytesToFloat64(buf.Bytes())
	if !slices.Equal(got, []float64{0.25, -1}) {
		t.Errorf("got %v", got)
	}
}

func TestMixToMono(t *testing.T) {
	tests := []struct {
		name     string
		pcm      []float64
		channels int
		want     []float64
	}{
		{"mono copy", []float64{0.1, 0.2}, 1, []float64{0.1, 0.2}},
		{"stereo", []float64{1, 0, 0.5, 0.5}, 2, []float64{0.5, 0.5}},
		{"partial frame dropped", []float64{1, 1, 1}, 2, []float64{1}},
		{"empty", nil, 2, []float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MixToMono(tt.pcm, tt.channels); !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	if err := NewDecoder(nil).ValidateConfig(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	cfg := DefaultDecoderConfig()
	cfg.NativeDecoding = false
	cfg.FFmpegFallback = false
	if err := NewDecoder(cfg).ValidateConfig(); err == nil {
		t.Error("expected error with no decoders enabled")
	}
	cfg = DefaultDecoderConfig()
	cfg.TargetSampleRate = -1
	if err := NewDecoder(cfg).ValidateConfig(); err == nil {
		t.Error("expected error for negative sample rate")
	}
}
