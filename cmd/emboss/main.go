// Command emboss scores the embossing pattern quality of sample photographs.
//
// With a file argument it prints that image's score. Without one it scores every
// matching image under -dir and writes the scores to -out.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nvr-ai/go-emboss/batch"
	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/pipeline"
	"github.com/nvr-ai/go-emboss/profiler"
	"github.com/nvr-ai/go-emboss/results"
	"github.com/nvr-ai/go-emboss/templates"
)

const usage = `
    Embossing pattern quality assessment tool.
    Usage:
        emboss [flags]
            Score every image under -dir with a configured extension (.CR2 and .JPG
            by default) and write the scores to -out when finished.
        emboss [flags] <image>
            Score one image and print its score.

`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var (
		configPath      string
		dir             string
		out             string
		workers         int
		watch           bool
		templateVersion string
		verbose         bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	flag.StringVar(&dir, "dir", ".", "Directory scanned in batch mode")
	flag.StringVar(&out, "out", "", "CSV output path (default from config: results.csv)")
	flag.IntVar(&workers, "workers", 0, "Images scored concurrently (default from config: 1)")
	flag.BoolVar(&watch, "watch", false, "Keep watching -dir for new images after the batch run")
	flag.StringVar(&templateVersion, "template-version", "", "Embedded template version (default from config)")
	flag.BoolVar(&verbose, "v", false, "Print per-stage timings")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	fmt.Print(usage)

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if out != "" {
		cfg.Batch.Output = out
	}
	if workers > 0 {
		cfg.Batch.Workers = workers
	}
	if templateVersion != "" {
		cfg.Template.Version = templateVersion
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	tmpl, err := templates.Load(cfg.Template)
	if err != nil {
		log.Fatalf("template: %v (available: %v)", err, templates.Versions())
	}
	defer tmpl.Close()

	scorer := pipeline.New(cfg, tmpl)
	var prof *profiler.Profiler
	if verbose {
		prof = profiler.New(profiler.Options{})
		scorer.SetProfiler(prof)
	}

	if flag.NArg() == 1 {
		res, err := scorer.ScoreFile(flag.Arg(0))
		if err != nil {
			if pipeline.IsSkippable(err) {
				log.Printf("%v", err)
				os.Exit(1)
			}
			log.Fatalf("score: %v", err)
		}
		fmt.Println(res.Score)
		prof.Report()
		return
	}
	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runBatch(ctx, cfg, scorer, prof, dir, watch); err != nil {
		log.Fatalf("batch: %v", err)
	}
	fmt.Println("\nDone.")
}

func runBatch(ctx context.Context, cfg config.Config, scorer *pipeline.Scorer, prof *profiler.Profiler, dir string, watch bool) error {
	paths, err := batch.Scan(dir, cfg.Batch.Extensions)
	if err != nil {
		return err
	}

	sink := results.NewSink()
	runner := batch.NewRunner(scorer, sink, cfg.Batch)
	runner.OnResult = func(res pipeline.Result) {
		fmt.Println(res.Name, res.Elapsed.Seconds())
	}

	prof.Start()
	defer prof.Stop()

	sum, err := runner.Run(ctx, paths)
	if err != nil {
		return err
	}
	log.Printf("scored %d, skipped %d of %d images", sum.Scored, sum.Skipped, len(paths))
	if err := sink.WriteFile(cfg.Batch.Output); err != nil {
		return err
	}

	if watch {
		if err := runner.Watch(ctx, dir); err != nil {
			return err
		}
		if err := sink.WriteFile(cfg.Batch.Output); err != nil {
			return err
		}
	}

	prof.Report()
	return nil
}
