package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-pose/benchmark"
	"github.com/nvr-ai/go-pose/config"
	"github.com/nvr-ai/go-pose/logger"
)

func main() {
	var (
		configFile   = flag.String("config", "", "Path to a posecam configuration file supplying the decoder parameters")
		scenarioFile = flag.String("scenarios", "", "Path to a scenario set JSON file")
		outputDir    = flag.String("output", "./benchmark_results", "Output directory for results")
		quick        = flag.Bool("quick", false, "Run the quick scenarios")
		crowd        = flag.Bool("crowd", false, "Scale the number of people")
		workers      = flag.Int("workers", -1, "Compare worker bounds with this many people")
		timeout      = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
		debug        = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	log := logger.New(*debug)
	defer log.Sync() //nolint:errcheck

	if err := run(log, *configFile, *scenarioFile, *outputDir, *quick, *crowd, *workers, *timeout); err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
}

func run(log *zap.Logger, configFile, scenarioFile, outputDir string, quick, crowd bool, workers int, timeout time.Duration) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	suite, err := benchmark.NewSuite(benchmark.NewSuiteArgs{
		Params:     cfg.Decoder,
		OutputPath: outputDir,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	var sets []*benchmark.ScenarioSet
	if scenarioFile != "" {
		set, err := benchmark.LoadScenarioSet(scenarioFile)
		if err != nil {
			return err
		}
		sets = append(sets, set)
	}
	if crowd {
		sets = append(sets, benchmark.CrowdScenarios())
	}
	if workers >= 0 {
		sets = append(sets, benchmark.WorkerScenarios(workers))
	}
	if quick || len(sets) == 0 {
		sets = append(sets, benchmark.QuickScenarios())
	}
	for _, set := range sets {
		suite.AddScenario(set.Scenarios...)
		log.Info("scenarios added", zap.String("set", set.Name), zap.Int("count", len(set.Scenarios)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	if err := suite.RunAll(ctx); err != nil {
		return err
	}
	if _, err := suite.SaveResults(); err != nil {
		return err
	}

	var best benchmark.PerformanceMetrics
	for _, r := range suite.GetResults() {
		if r.FramesPerSecond > best.FramesPerSecond {
			best = r
		}
	}
	log.Info("benchmark completed",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("scenarios", len(suite.GetResults())),
		zap.String("best", best.Scenario.Name),
		zap.Float64("best_fps", best.FramesPerSecond),
	)
	return nil
}

func init() {
	flag.Usage = func() {
		name := filepath.Base(os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", name)
		fmt.Fprintf(os.Stderr, "Decode benchmark over synthetic multi-person scenes.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -quick\n", name)
		fmt.Fprintf(os.Stderr, "  %s -crowd -workers 4 -output ./results\n", name)
		fmt.Fprintf(os.Stderr, "  %s -config ./configs/posecam.yaml -scenarios ./scenarios.json\n", name)
	}
}
