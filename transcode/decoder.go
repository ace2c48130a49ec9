package transcode

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-clave/logging"
)

// ErrUnsupportedFormat is returned when no native decoder handles the input
// and the ffmpeg fallback is disabled.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// AudioData represents decoded audio data
type AudioData struct {
	PCM        []float64       `json:"-"` // interleaved samples in [-1, 1]
	SampleRate int             `json:"sample_rate"`
	Channels   int             `json:"channels"`
	Duration   time.Duration   `json:"duration"`
	Metadata   *StreamMetadata `json:"metadata,omitempty"`
}

// Mono returns the samples averaged across channels.
func (a *AudioData) Mono() []float64 {
	return MixToMono(a.PCM, a.Channels)
}

// StreamMetadata describes where the audio came from and how it was decoded.
type StreamMetadata struct {
	Source     string `json:"source,omitempty"`
	Format     string `json:"format"`
	Decoder    string `json:"decoder"` // "wav", "mp3", "ffmpeg"
	Codec      string `json:"codec,omitempty"`
	Bitrate    int    `json:"bitrate,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"` // of the source
	Channels   int    `json:"channels,omitempty"`    // of the source
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate applies to the ffmpeg path only; native decoders keep
	// the source rate. 0 keeps the source rate for ffmpeg too.
	TargetSampleRate int           `json:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration"`
	NativeDecoding   bool          `json:"native_decoding"` // wav and mp3 without ffmpeg
	FFmpegFallback   bool          `json:"ffmpeg_fallback"`
	FFmpegPath       string        `json:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout"` // per ffmpeg/ffprobe invocation
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 22050,
		NativeDecoding:   true,
		FFmpegFallback:   true,
		FFmpegPath:       "ffmpeg",  // Assume in PATH
		FFprobePath:      "ffprobe", // Assume in PATH
		Timeout:          2 * time.Minute,
	}
}

// Decoder turns audio files into mono-mixable PCM.
type Decoder struct {
	config *DecoderConfig
}

// AudioMetadata holds detected audio properties from FFprobe
type AudioMetadata struct {
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	Format     string  `json:"format"`
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{config: config}
}

// DecodeFile decodes an audio file. WAV and MP3 are decoded natively when
// enabled; everything else, and native failures, go through ffmpeg.
func (d *Decoder) DecodeFile(ctx context.Context, filename string) (*AudioData, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeFile",
		"filename":  filename,
	})

	format := formatFromExtension(filename)
	if d.config.NativeDecoding && isNative(format) {
		f, err := os.Open(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio file: %w", err)
		}
		audio, err := d.decodeNative(f, format)
		f.Close()
		if err == nil {
			audio.Metadata.Source = filename
			return audio, nil
		}
		if !d.config.FFmpegFallback {
			return nil, err
		}
		logger.Warn("Native decode failed, falling back to ffmpeg", logging.Fields{
			"format": format,
			"error":  err.Error(),
		})
	}

	if !d.config.FFmpegFallback {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	metadata, err := d.probeAudioFile(ctx, filename)
	if err != nil {
		logger.Error(err, "Failed to probe audio file")
		return nil, err
	}

	logger.Debug("Audio metadata detected", logging.Fields{
		"input_sample_rate": metadata.SampleRate,
		"input_channels":    metadata.Channels,
		"input_codec":       metadata.Codec,
		"input_duration":    metadata.Duration,
	})

	return d.decodeWithFFmpeg(ctx, []string{"-i", filename}, nil, metadata, filename, logger)
}

// DecodeReader decodes audio of the given format ("wav", "mp3", or anything
// ffmpeg understands) from r.
func (d *Decoder) DecodeReader(ctx context.Context, r io.Reader, format string) (*AudioData, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if d.config.NativeDecoding && isNative(format) {
		return d.decodeNative(r, format)
	}
	if !d.config.FFmpegFallback {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "audio_decoder",
		"function":  "DecodeReader",
		"format":    format,
	})

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio data")
	}
	return d.decodeWithFFmpeg(ctx, []string{"-i", "pipe:0"}, data, &AudioMetadata{Format: format}, "", logger)
}

func (d *Decoder) decodeNative(r io.Reader, format string) (*AudioData, error) {
	switch format {
	case "wav", "wave":
		return decodeWAV(r)
	case "mp3":
		return decodeMP3(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func formatFromExtension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func isNative(format string) bool {
	switch format {
	case "wav", "wave", "mp3":
		return true
	}
	return false
}

func (d *Decoder) command(ctx context.Context, path string, args ...string) (*exec.Cmd, context.CancelFunc) {
	if d.config.Timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
		return exec.CommandContext(ctx, path, args...), cancel
	}
	return exec.CommandContext(ctx, path, args...), func() {}
}

// probeAudioFile uses ffprobe to get audio information from a file
func (d *Decoder) probeAudioFile(ctx context.Context, filename string) (*AudioMetadata, error) {
	cmd, cancel := d.command(ctx, d.config.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-select_streams", "a:0",
		filename,
	)
	defer cancel()

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, string(exitError.Stderr))
		}
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseFFprobeOutput(output)
}

// parseFFprobeOutput parses ffprobe JSON to extract audio metadata
func parseFFprobeOutput(jsonData []byte) (*AudioMetadata, error) {
	var probe struct {
		Streams []struct {
			CodecType     string `json:"codec_type"`
			CodecName     string `json:"codec_name"`
			SampleRate    string `json:"sample_rate"`
			Channels      int    `json:"channels"`
			Duration      string `json:"duration"`
			BitRate       string `json:"bit_rate"`
			CodecLongName string `json:"codec_long_name"`
		} `json:"streams"`
	}

	if err := json.Unmarshal(jsonData, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio streams found")
	}

	stream := probe.Streams[0]
	if stream.CodecType != "audio" {
		return nil, fmt.Errorf("stream is not audio type: %s", stream.CodecType)
	}
	if stream.Channels <= 0 || stream.Channels > 8 {
		return nil, fmt.Errorf("invalid channel count: %d", stream.Channels)
	}

	sampleRate, _ := strconv.Atoi(stream.SampleRate)
	duration, _ := strconv.ParseFloat(stream.Duration, 64)
	bitrate, _ := strconv.Atoi(stream.BitRate)

	return &AudioMetadata{
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		Codec:      stream.CodecName,
		Duration:   duration,
		Bitrate:    bitrate,
		Format:     stream.CodecLongName,
	}, nil
}

// decodeWithFFmpeg runs ffmpeg with the given input arguments and collects
// mono float64 output.
func (d *Decoder) decodeWithFFmpeg(ctx context.Context, input []string, stdin []byte, metadata *AudioMetadata, source string, logger logging.Logger) (*AudioData, error) {
	sampleRate := d.config.TargetSampleRate
	if sampleRate <= 0 {
		sampleRate = metadata.SampleRate
	}
	args := append(input, d.buildFFmpegArgs(sampleRate)...)
	args = append(args, "pipe:1")

	cmd, cancel := d.command(ctx, d.config.FFmpegPath, args...)
	defer cancel()
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}

	logger.Debug("Running ffmpeg command", logging.Fields{
		"args": strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Ffmpeg decode failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}

	samples := bytesToFloat64(output)
	if len(samples) == 0 {
		return nil, fmt.Errorf("no audio samples decoded")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("unknown output sample rate")
	}

	return &AudioData{
		PCM:        samples,
		SampleRate: sampleRate,
		Channels:   1,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(sampleRate),
		Metadata: &StreamMetadata{
			Source:     source,
			Format:     metadata.Format,
			Decoder:    "ffmpeg",
			Codec:      metadata.Codec,
			Bitrate:    metadata.Bitrate,
			SampleRate: metadata.SampleRate,
			Channels:   metadata.Channels,
		},
	}, nil
}

// buildFFmpegArgs returns the output arguments: mono f64le at sampleRate.
func (d *Decoder) buildFFmpegArgs(sampleRate int) []string {
	args := []string{
		"-vn",
		"-f", "f64le",
		"-ac", "1",
	}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	if d.config.MaxDuration > 0 {
		args = append(args, "-t", fmt.Sprintf("%.2f", d.config.MaxDuration.Seconds()))
	}
	return append(args, "-v", "error")
}

// bytesToFloat64 converts raw little-endian float64 bytes, dropping a
// trailing partial sample.
func bytesToFloat64(data []byte) []float64 {
	samples := make([]float64, len(data)/8)
	for i := range samples {
		samples[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return samples
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate < 0 {
		return fmt.Errorf("target sample rate must not be negative: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	if !d.config.NativeDecoding && !d.config.FFmpegFallback {
		return fmt.Errorf("no decoder enabled")
	}
	return nil
}

// CheckFFmpeg reports whether the configured ffmpeg and ffprobe binaries run.
func (d *Decoder) CheckFFmpeg(ctx context.Context) error {
	for _, path := range []string{d.config.FFmpegPath, d.config.FFprobePath} {
		cmd, cancel := d.command(ctx, path, "-version")
		err := cmd.Run()
		cancel()
		if err != nil {
			return fmt.Errorf("%s not available: %w", path, err)
		}
	}
	return nil
}

// SupportedExtensions lists the file extensions DecodeFile is expected to
// handle with the current configuration.
func (d *Decoder) SupportedExtensions() []string {
	exts := []string{}
	if d.config.NativeDecoding || d.config.FFmpegFallback {
		exts = append(exts, ".wav", ".mp3")
	}
	if d.config.FFmpegFallback {
		exts = append(exts, ".flac", ".ogg", ".opus", ".m4a", ".aac", ".aiff", ".aif", ".wma")
	}
	return exts
}
