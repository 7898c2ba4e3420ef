package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-pose/config"
	"github.com/nvr-ai/go-pose/inference"
	"github.com/nvr-ai/go-pose/logger"
	"github.com/nvr-ai/go-pose/models"
	"github.com/nvr-ai/go-pose/models/model"
	"github.com/nvr-ai/go-pose/models/model/preprocess"
	"github.com/nvr-ai/go-pose/models/openpose"
	"github.com/nvr-ai/go-pose/motion"
	"github.com/nvr-ai/go-pose/profiler"
	"github.com/nvr-ai/go-pose/render"
	"github.com/nvr-ai/go-pose/util"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	path, err := config.ParseConfigFlag(os.Args[1:])
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log := logger.New(cfg.Debug)
	defer func() { _ = log.Sync() }()

	registry := prometheus.NewRegistry()
	metrics, err := profiler.NewMetrics(registry)
	if err != nil {
		return err
	}

	rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{
		ReportInterval: cfg.Capture.ReportInterval,
		Logger:         log,
	})
	rp.Start()
	defer rp.Stop()

	session := cfg.Model.Session
	engine, err := inference.NewEngineBuilder().
		WithSession(session).
		WithModel(model.NewModelArgs{
			Name:    cfg.Model.Name,
			Path:    session.ModelPath,
			Inputs:  []string{session.InputName},
			Outputs: []string{session.HeatmapOutput, session.PAFOutput},
			Options: cfg.Decoder,
			Logger:  log,
			Metrics: metrics,
		}).
		WithPreprocessor(preprocess.OpenPoseConfig(session.InputWidth, session.InputHeight)).
		WithEstimatorOptions(inference.WithLogger(log), inference.WithProfiler(rp)).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Capture.Image != "" {
		return processImages(ctx, cfg, engine, log)
	}

	g, ctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.Addr, registry, log)
		})
	}
	g.Go(func() error {
		err := capture(ctx, cfg, engine, rp, log)
		stop()
		return err
	})
	return g.Wait()
}

func serveMetrics(ctx context.Context, addr string, registry *prometheus.Registry, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// processImages estimates the poses of an image file, or of every image in a
// directory, and saves the rendered results.
func processImages(ctx context.Context, cfg *config.AppConfig, engine inference.Engine, log *zap.Logger) error {
	info, err := os.Stat(cfg.Capture.Image)
	if err != nil {
		return err
	}

	var files []util.ImageFile
	if info.IsDir() {
		if files, err = util.LoadDirectoryImageFiles(cfg.Capture.Image); err != nil {
			return err
		}
	} else {
		data, err := os.ReadFile(cfg.Capture.Image)
		if err != nil {
			return err
		}
		files = []util.ImageFile{{Path: cfg.Capture.Image, Data: data, Frame: -1}}
	}

	if err := os.MkdirAll(cfg.Capture.OutputDir, 0o755); err != nil {
		return err
	}
	var errs error
	for _, f := range files {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := processImage(ctx, cfg, engine, f, log); err != nil {
			log.Warn("image failed", zap.String("path", f.Path), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func processImage(ctx context.Context, cfg *config.AppConfig, engine inference.Engine, f util.ImageFile, log *zap.Logger) error {
	img, err := gocv.IMDecode(f.Data, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decode %s: %w", f.Path, err)
	}
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("error reading image: %s", f.Path)
	}

	frame, err := img.ToImage()
	if err != nil {
		return err
	}
	results, err := engine.Predict(ctx, frame)
	if err != nil {
		return err
	}
	for i, r := range results {
		log.Info("pose",
			zap.String("image", f.Path),
			zap.Int("index", i),
			zap.Float32("score", r.Pose.Score),
			zap.Int("joints", r.Pose.Joints),
			zap.Stringer("location", r.Location),
		)
	}

	kept := filterPoses(results, cfg.Capture.MinPoseScore)
	render.Results(&img, kept, openpose.COCOLimbs, render.DefaultStyle())
	outputPath := filepath.Join(cfg.Capture.OutputDir, "pose_"+filepath.Base(f.Path))
	if !gocv.IMWrite(outputPath, img) {
		return fmt.Errorf("failed to save %s", outputPath)
	}
	if err := writePoses(strings.TrimSuffix(outputPath, filepath.Ext(outputPath))+".json", kept, cfg.Capture.Layout); err != nil {
		return err
	}
	log.Info("processed image saved", zap.String("path", outputPath), zap.Int("poses", len(kept)))
	return nil
}

// writePoses saves the poses in the configured keypoint layout as JSON.
func writePoses(path string, results []inference.Result, layout models.KeypointLayout) error {
	mgr := models.DefaultKeypointManager()
	poses := make([]models.ExportedPose, 0, len(results))
	for _, r := range results {
		p, err := mgr.Export(r.Pose, models.LayoutOpenPose18, layout)
		if err != nil {
			return err
		}
		poses = append(poses, p)
	}

	data, err := json.MarshalIndent(poses, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// filterPoses returns the results scoring at least minScore in a new slice.
func filterPoses(results []inference.Result, minScore float32) []inference.Result {
	kept := make([]inference.Result, 0, len(results))
	for _, r := range results {
		if r.Pose.Score >= minScore {
			kept = append(kept, r)
		}
	}
	return kept
}

func openDevice(device string) (*gocv.VideoCapture, error) {
	if id, err := strconv.Atoi(device); err == nil {
		return gocv.OpenVideoCapture(id)
	}
	return gocv.OpenVideoCapture(device)
}

func capture(ctx context.Context, cfg *config.AppConfig, engine inference.Engine, rp *profiler.RuntimeProfiler, log *zap.Logger) error {
	webcam, err := openDevice(cfg.Capture.Device)
	if err != nil {
		return fmt.Errorf("open capture device %s: %w", cfg.Capture.Device, err)
	}
	defer webcam.Close()

	var window *gocv.Window
	if cfg.Capture.Window {
		window = gocv.NewWindow("posecam")
		defer window.Close()
	}

	var segmenter *motion.Segmenter
	if cfg.Capture.Motion.Enabled {
		segmenter = motion.NewSegmenter(cfg.Capture.Motion)
		defer segmenter.Close()
	}

	img := gocv.NewMat()
	defer img.Close()

	style := render.DefaultStyle()
	log.Info("start reading capture device", zap.String("device", cfg.Capture.Device))
	for ctx.Err() == nil {
		done := rp.StartOperation("capture")
		ok := webcam.Read(&img)
		done()
		if !ok {
			return fmt.Errorf("cannot read device %s", cfg.Capture.Device)
		}
		if img.Empty() {
			continue
		}

		var rois []image.Rectangle
		if segmenter != nil {
			done = rp.StartOperation("motion")
			rois, err = segmenter.Regions(img)
			done()
			if err != nil {
				log.Warn("motion segmentation failed", zap.Error(err))
				continue
			}
		}

		var results []inference.Result
		if segmenter == nil || len(rois) > 0 {
			frame, err := img.ToImage()
			if err != nil {
				log.Warn("frame conversion failed", zap.Error(err))
				continue
			}
			results, err = engine.PredictRegions(ctx, frame, rois)
			if err != nil {
				log.Warn("pose estimation failed", zap.Int("regions", len(rois)), zap.Error(err))
			}
		}

		kept := filterPoses(results, cfg.Capture.MinPoseScore)
		log.Debug("frame processed",
			zap.Int("poses", len(kept)),
			zap.Int("regions", len(rois)),
			zap.Stringer("frame", image.Rect(0, 0, img.Cols(), img.Rows())),
		)

		if window == nil {
			continue
		}
		done = rp.StartOperation("render")
		render.Results(&img, kept, openpose.COCOLimbs, style)
		done()
		window.IMShow(img)
		if window.WaitKey(1) == 27 {
			return nil
		}
	}
	return nil
}
