package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/RyanBlaney/sonido-clave/algorithms/tonal"
	"github.com/RyanBlaney/sonido-clave/cache"
	"github.com/RyanBlaney/sonido-clave/chord"
	"github.com/RyanBlaney/sonido-clave/fingerprint"
	"github.com/RyanBlaney/sonido-clave/keyfinder"
	"github.com/RyanBlaney/sonido-clave/keyfinder/config"
	"github.com/RyanBlaney/sonido-clave/logging"
	"github.com/RyanBlaney/sonido-clave/transcode"
)

type options struct {
	configPath string
	jsonOut    bool
	workers    int
	cachePath  string
	chordDir   string
	logLevel   string
	segments   bool
	progress   bool
	ffmpeg     string
	ffprobe    string
	noFFmpeg   bool
	profile    string
	strategy   string
	profiles   bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "JSON config file (defaults apply to missing fields)")
	flag.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")
	flag.IntVar(&opts.workers, "workers", 0, "concurrent analyses (0=config, then one per CPU)")
	flag.StringVar(&opts.cachePath, "cache", "", "sqlite database for cached estimates (empty disables caching)")
	flag.StringVar(&opts.chordDir, "chord-dir", "", "write a reference-chord MIDI file per track into this directory")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "debug | info | warn | error")
	flag.BoolVar(&opts.segments, "segments", false, "print the per-segment key timeline")
	flag.BoolVar(&opts.progress, "progress", true, "show a progress bar on stderr")
	flag.StringVar(&opts.ffmpeg, "ffmpeg", "ffmpeg", "ffmpeg binary for non-native formats")
	flag.StringVar(&opts.ffprobe, "ffprobe", "ffprobe", "ffprobe binary for non-native formats")
	flag.BoolVar(&opts.noFFmpeg, "no-ffmpeg", false, "decode wav and mp3 only")
	flag.StringVar(&opts.profile, "profile", "", "override the profile family (krumhansl, temperley, bellman, ...)")
	flag.StringVar(&opts.strategy, "segmentation", "", "override segmentation: time | beats")
	flag.BoolVar(&opts.profiles, "profiles", false, "list the available profile families and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: clave [flags] <file|dir>...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && !opts.profiles {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, err := run(ctx, opts, flag.Args(), os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "clave: %v\n", err)
	}
	os.Exit(code)
}

func run(ctx context.Context, opts options, args []string, stdout io.Writer) (int, error) {
	if opts.profiles {
		return 0, writeProfiles(stdout)
	}

	level, err := logging.ParseLevel(opts.logLevel)
	if err != nil {
		return 2, err
	}
	logger := logging.NewWriterLogger(os.Stderr)
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)

	cfg, err := loadConfig(opts)
	if err != nil {
		return 2, err
	}
	analyzer, err := keyfinder.New(cfg)
	if err != nil {
		return 2, err
	}

	decoderCfg := transcode.DefaultDecoderConfig()
	decoderCfg.FFmpegPath = opts.ffmpeg
	decoderCfg.FFprobePath = opts.ffprobe
	decoderCfg.FFmpegFallback = !opts.noFFmpeg
	decoder := transcode.NewDecoder(decoderCfg)
	if err := decoder.ValidateConfig(); err != nil {
		return 2, err
	}
	if decoderCfg.FFmpegFallback {
		if err := decoder.CheckFFmpeg(ctx); err != nil {
			logging.Warn("ffmpeg fallback unavailable, only wav and mp3 will decode", logging.Fields{
				"error": err.Error(),
			})
		}
	}

	files, err := collectFiles(args, decoder.SupportedExtensions())
	if err != nil {
		return 2, err
	}
	if len(files) == 0 {
		return 2, errors.New("no audio files found")
	}

	var memo *cache.Memo
	if opts.cachePath != "" {
		store, err := cache.Open(opts.cachePath)
		if err != nil {
			return 1, err
		}
		defer store.Close()
		memo = cache.NewMemo(store, cfg.Digest())
	}

	jobs := make([]keyfinder.Job, len(files))
	for i, path := range files {
		jobs[i] = newJob(path, decoder, memo)
	}

	batch := keyfinder.NewBatch(analyzer, opts.workers)
	var progress *mpb.Progress
	if opts.progress {
		progress = mpb.NewWithContext(ctx, mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
		bar := progress.AddBar(int64(len(jobs)),
			mpb.PrependDecorators(
				decor.Name("Analyzing: "),
				decor.CountersNoUnit("%d / %d"),
			),
			mpb.AppendDecorators(
				decor.Percentage(),
				decor.EwmaETA(decor.ET_STYLE_GO, 60),
			),
		)
		last := time.Now()
		batch.OnProgress(func(done, total int, _ keyfinder.Result) {
			bar.EwmaIncrement(time.Since(last))
			last = time.Now()
		})
	}

	results := batch.Run(ctx, jobs)
	if progress != nil {
		progress.Wait()
	}

	if opts.chordDir != "" {
		if err := writeChords(opts.chordDir, results); err != nil {
			return 1, err
		}
	}

	if opts.jsonOut {
		err = writeJSON(stdout, results)
	} else {
		err = writeText(stdout, results, opts.segments)
	}
	if err != nil {
		return 1, err
	}

	for _, r := range results {
		if r.Err != nil {
			return 1, nil
		}
	}
	return 0, nil
}

func writeProfiles(w io.Writer) error {
	for _, family := range tonal.Families() {
		if _, err := fmt.Fprintf(w, "%-12s %s\n", family, family.Description()); err != nil {
			return err
		}
	}
	return nil
}

func loadConfig(opts options) (config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = config.Load(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if opts.profile != "" {
		cfg.ProfileFamily = opts.profile
	}
	if opts.strategy != "" {
		cfg.Segmentation = config.Segmentation(opts.strategy)
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	return cfg, cfg.Validate()
}

// newJob decodes path to mono on a worker. With a memo, the file is
// fingerprinted first and decoded only on a cache miss.
func newJob(path string, decoder *transcode.Decoder, memo *cache.Memo) keyfinder.Job {
	job := keyfinder.Job{
		Name: path,
		Load: func(ctx context.Context) ([]float64, int, error) {
			audio, err := decoder.DecodeFile(ctx, path)
			if err != nil {
				return nil, 0, err
			}
			return audio.Mono(), audio.SampleRate, nil
		},
	}
	if memo == nil {
		return job
	}

	job.Cache = func(ctx context.Context, analyze func(context.Context) (*keyfinder.KeyEstimate, error)) (*keyfinder.KeyEstimate, bool, error) {
		fp, err := fingerprint.File(path)
		if err != nil {
			return nil, false, err
		}
		return memo.Estimate(ctx, fp, path, analyze)
	}
	return job
}

func collectFiles(args []string, extensions []string) ([]string, error) {
	supported := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		supported[ext] = true
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if supported[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func writeChords(dir string, results []keyfinder.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := chordFileNames(results)
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		bpm := r.Estimate.Tempo
		if bpm <= 0 {
			bpm = 120
		}
		f, err := os.Create(filepath.Join(dir, names[i]))
		if err != nil {
			return err
		}
		err = chord.WriteMIDI(f, r.Estimate.RecommendedKey, bpm, 4)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write chord for %s: %w", r.Name, err)
		}
	}
	return nil
}

// chordFileNames names one MIDI file per successful result after the track's
// base name. Tracks sharing a base name are prefixed with their parent
// directory, and a numeric suffix settles anything still clashing.
func chordFileNames(results []keyfinder.Result) []string {
	stem := func(name string) string {
		return strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	counts := make(map[string]int)
	for _, r := range results {
		if r.Err == nil {
			counts[stem(r.Name)]++
		}
	}

	names := make([]string, len(results))
	taken := make(map[string]bool)
	for i, r := range results {
		if r.Err != nil {
			continue
		}
		name := stem(r.Name)
		if counts[name] > 1 {
			name = filepath.Base(filepath.Dir(r.Name)) + "_" + name
		}
		candidate := name
		for n := 2; taken[candidate]; n++ {
			candidate = fmt.Sprintf("%s-%d", name, n)
		}
		taken[candidate] = true
		names[i] = candidate + ".mid"
	}
	return names
}

type jsonResult struct {
	File     string                 `json:"file"`
	Cached   bool                   `json:"cached,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Estimate *keyfinder.KeyEstimate `json:"estimate,omitempty"`
}

func writeJSON(w io.Writer, results []keyfinder.Result) error {
	out := make([]jsonResult, len(results))
	for i, r := range results {
		out[i] = jsonResult{File: r.Name, Cached: r.Cached, Estimate: r.Estimate}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func writeText(w io.Writer, results []keyfinder.Result, segments bool) error {
	for _, r := range results {
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "%s\terror: %v\n", r.Name, r.Err); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(w, formatEstimate(r.Name, r.Estimate, r.Cached)); err != nil {
			return err
		}
		if !segments {
			continue
		}
		for _, s := range r.Estimate.Segments {
			if _, err := fmt.Fprintf(w, "  %6.1fs-%6.1fs  %-10s %-3s %.3f (%s)\n",
				s.Start, s.End, s.Key, s.Camelot, s.Score, s.Family); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatEstimate(name string, est *keyfinder.KeyEstimate, cached bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\t%s (%s) %.1f%%", name, est.DominantKey, est.CamelotCode, est.DominantConfidence)
	if est.RecommendedKey != est.DominantKey {
		fmt.Fprintf(&b, "  recommended %s (%s, %.1f%%)", est.RecommendedKey, est.RecommendedSource, est.RecommendedConfidence)
	}
	if est.ModulationDetected && est.SecondaryKey != nil {
		fmt.Fprintf(&b, "  modulates to %s (%s)", *est.SecondaryKey, est.SecondaryCamelot)
	}
	if est.Tempo > 0 {
		fmt.Fprintf(&b, "  %.0f BPM", est.Tempo)
	}
	if cached {
		b.WriteString("  [cached]")
	}
	return b.String()
}
