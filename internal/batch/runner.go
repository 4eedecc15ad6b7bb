// Package batch corrects many image files at once, either from a list of
// paths (Runner) or as they appear in a directory (Watcher).
//
// Each input is read, corrected and written independently. A failure on one
// file is recorded in its Result and never stops the others.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/imaging"
	"github.com/rs/zerolog"
)

// DefaultSuffix is appended to the base name of each output file.
const DefaultSuffix = "_deskewed"

// ErrOutputConflict is reported for an input whose output path is already
// claimed by an earlier input in the same run.
var ErrOutputConflict = errors.New("output conflict")

// Result reports the outcome for one input file.
type Result struct {
	Input    string        `json:"input"`
	Output   string        `json:"output,omitempty"`
	Angle    float64       `json:"angle"`
	Fallback bool          `json:"fallback,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Err      error         `json:"-"`
}

// Runner corrects files with a bounded pool of workers. It is safe for
// concurrent use.
type Runner struct {
	corrector *deskew.Corrector
	logger    zerolog.Logger
	workers   int
	outputDir string
	suffix    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the number of files processed in parallel.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithOutputDir writes outputs into dir instead of next to each input.
func WithOutputDir(dir string) Option {
	return func(r *Runner) {
		r.outputDir = dir
	}
}

// WithSuffix overrides DefaultSuffix.
func WithSuffix(suffix string) Option {
	return func(r *Runner) {
		r.suffix = suffix
	}
}

// WithLogger sets the logger for per-file progress.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner creates a Runner around corrector.
func NewRunner(corrector *deskew.Corrector, opts ...Option) *Runner {
	r := &Runner{
		corrector: corrector,
		logger:    zerolog.Nop(),
		workers:   runtime.NumCPU(),
		suffix:    DefaultSuffix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OutputPath returns where the corrected version of input is written:
// <base><suffix><ext>, in the output directory when one is set.
func (r *Runner) OutputPath(input string) string {
	dir, name := filepath.Split(input)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext) + r.suffix + ext
	if r.outputDir != "" {
		return filepath.Join(r.outputDir, base)
	}
	return filepath.Join(dir, base)
}

// IsOutput reports whether path looks like a file this runner wrote.
func (r *Runner) IsOutput(path string) bool {
	if r.suffix == "" {
		return r.outputDir != "" && filepath.Dir(path) == filepath.Clean(r.outputDir)
	}
	name := filepath.Base(path)
	return strings.HasSuffix(strings.TrimSuffix(name, filepath.Ext(name)), r.suffix)
}

// Expand resolves paths into the list of image files to process.
// Directories contribute their supported image files (not recursively),
// skipping previous outputs. Explicit file paths are kept as given.
func (r *Runner) Expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			full := filepath.Join(p, e.Name())
			if e.IsDir() || !imaging.IsSupported(full) || r.IsOutput(full) {
				continue
			}
			found = append(found, full)
		}
		sort.Strings(found)
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// Run expands paths and corrects every file. Results are returned in input
// order. The error is non-nil only when the inputs cannot be listed or the
// output directory cannot be created; per-file failures are in the results.
//
// Inputs that map to the same output path (same name in different
// directories with an output directory set) are not processed after the
// first; they get ErrOutputConflict. Files not started before ctx is
// canceled get ctx.Err() as their error.
func (r *Runner) Run(ctx context.Context, paths []string) ([]Result, error) {
	files, err := r.Expand(paths)
	if err != nil {
		return nil, err
	}
	if r.outputDir != "" {
		if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	results := make([]Result, len(files))
	todo := r.claimOutputs(files, results)
	jobs := make(chan int)

	workers := r.workers
	if workers > len(todo) {
		workers = len(todo)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = r.ProcessFile(ctx, files[idx])
			}
		}()
	}

	for n, idx := range todo {
		select {
		case jobs <- idx:
		case <-ctx.Done():
			for _, rest := range todo[n:] {
				results[rest] = Result{Input: files[rest], Err: ctx.Err()}
			}
			close(jobs)
			wg.Wait()
			return results, nil
		}
	}
	close(jobs)
	wg.Wait()

	return results, nil
}

// claimOutputs returns the indices of files whose output path is not taken
// by an earlier file, and records ErrOutputConflict in results for the rest.
func (r *Runner) claimOutputs(files []string, results []Result) []int {
	owner := make(map[string]string, len(files))
	todo := make([]int, 0, len(files))
	for idx, input := range files {
		output := filepath.Clean(r.OutputPath(input))
		if first, ok := owner[output]; ok {
			results[idx] = Result{
				Input: input,
				Err:   fmt.Errorf("%w: %s is also the output of %s", ErrOutputConflict, output, first),
			}
			r.logFailure(results[idx])
			continue
		}
		owner[output] = input
		todo = append(todo, idx)
	}
	return todo
}

// ProcessFile corrects a single file and writes it to OutputPath(input).
func (r *Runner) ProcessFile(ctx context.Context, input string) Result {
	start := time.Now()
	res := Result{Input: input}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	img, err := imaging.Open(input)
	if err != nil {
		res.Err = err
		r.logFailure(res)
		return res
	}

	out, err := r.corrector.Analyze(img)
	if err != nil {
		res.Err = fmt.Errorf("failed to deskew %s: %w", input, err)
		r.logFailure(res)
		return res
	}
	res.Angle = out.Angle
	res.Fallback = out.Fallback

	output := r.OutputPath(input)
	if err := imaging.Save(out.Image, output); err != nil {
		res.Err = err
		r.logFailure(res)
		return res
	}
	res.Output = output
	res.Elapsed = time.Since(start)

	r.logger.Info().
		Str("input", input).
		Str("output", output).
		Float64("angle", res.Angle).
		Bool("fallback", res.Fallback).
		Dur("elapsed", res.Elapsed).
		Msg("file deskewed")

	return res
}

func (r *Runner) logFailure(res Result) {
	r.logger.Warn().Err(res.Err).Str("input", res.Input).Msg("file failed")
}

// Failed counts the results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, res := range results {
		if res.Err != nil {
			n++
		}
	}
	return n
}
