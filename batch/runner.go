package batch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/images"
	"github.com/nvr-ai/go-emboss/pipeline"
	"github.com/nvr-ai/go-emboss/results"
)

// Scorer scores one image file.
type Scorer interface {
	ScoreFile(path string) (pipeline.Result, error)
}

// Summary counts the outcome of a run.
type Summary struct {
	Scored  int
	Skipped int
}

// Runner scores files with a bounded worker pool and records successes in a
// results.Sink.
type Runner struct {
	scorer  Scorer
	sink    *results.Sink
	workers int
	exts    []string

	// Settle is how long a watched file must stay quiet before it is scored.
	Settle time.Duration
	// OnResult, when set, is called for every scored image.
	OnResult func(pipeline.Result)
}

// NewRunner creates a Runner.
func NewRunner(scorer Scorer, sink *results.Sink, cfg config.Batch) *Runner {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		scorer:  scorer,
		sink:    sink,
		workers: workers,
		exts:    cfg.Extensions,
		Settle:  300 * time.Millisecond,
	}
}

type outcome struct {
	res pipeline.Result
	err error
}

// Run scores paths. Per-image failures (see pipeline.IsSkippable) are logged
// and skipped; any other failure cancels the run and is returned. Records are
// added to the sink in path order regardless of worker scheduling.
func (r *Runner) Run(ctx context.Context, paths []string) (Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]outcome, len(paths))
	done := make([]bool, len(paths))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := r.scorer.ScoreFile(paths[i])
				if err != nil {
					if !pipeline.IsSkippable(err) {
						fail(err)
						continue
					}
					log.Printf("skip %s: %v", paths[i], err)
				}
				outcomes[i] = outcome{res: res, err: err}
				done[i] = true
			}
		}()
	}

feed:
	for i := range paths {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return Summary{}, firstErr
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	var sum Summary
	for i, o := range outcomes {
		if !done[i] {
			continue
		}
		if o.err != nil {
			sum.Skipped++
			continue
		}
		r.record(o.res)
		sum.Scored++
	}
	return sum, nil
}

func (r *Runner) record(res pipeline.Result) {
	r.sink.Add(results.Record{FileName: res.Name, Value: res.Score})
	if r.OnResult != nil {
		r.OnResult(res)
	}
}

// Watch scores matching files created or rewritten under dir until ctx is done.
// A file is scored once it has seen no events for Settle.
func (r *Runner) Watch(ctx context.Context, dir string) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "watch")
	}
	defer w.Close()

	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	log.Printf("watching %s", dir)

	tick := r.Settle / 2
	if tick <= 0 {
		tick = time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	pending := map[string]time.Time{}
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				if fi, statErr := os.Stat(ev.Name); statErr == nil && fi.IsDir() {
					if addErr := w.Add(ev.Name); addErr != nil {
						log.Printf("watch %s: %v", ev.Name, addErr)
					}
					continue
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && images.HasExtension(ev.Name, r.exts) {
				pending[ev.Name] = time.Now()
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < r.Settle {
					continue
				}
				delete(pending, path)

				res, err := r.scorer.ScoreFile(path)
				switch {
				case err == nil:
					r.record(res)
				case pipeline.IsSkippable(err):
					log.Printf("skip %s: %v", path, err)
				default:
					return err
				}
			}
		}
	}
}
