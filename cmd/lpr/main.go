// Command lpr reads license plates from a camera, a video file or still images.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/nvr-ai/go-lpr/config"
	"github.com/nvr-ai/go-lpr/controller"
	"github.com/nvr-ai/go-lpr/images"
	"github.com/nvr-ai/go-lpr/inference"
	"github.com/nvr-ai/go-lpr/plate"
	"github.com/nvr-ai/go-lpr/profiler"
	"github.com/nvr-ai/go-lpr/recognition"
	"github.com/nvr-ai/go-lpr/segment"
	"github.com/nvr-ai/go-lpr/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

type options struct {
	model   string
	labels  string
	config  string
	device  int
	video   string
	image   string
	dir     string
	glyph   string
	output  string
	workers int
	debug   bool
	profile bool
}

func main() {
	parser := argparse.NewParser("lpr", "Detect and read license plates")
	model := parser.String("m", "model", &argparse.Options{Help: "Character graph (.pb or .onnx)"})
	labels := parser.String("l", "labels", &argparse.Options{Help: "Label file, one label per line"})
	configPath := parser.String("c", "config", &argparse.Options{Help: "YAML configuration file"})
	device := parser.Int("d", "device", &argparse.Options{Help: "Capture device id", Default: 0})
	video := parser.String("v", "video", &argparse.Options{Help: "Video file to read instead of a device"})
	imagePath := parser.String("i", "image", &argparse.Options{Help: "Single image to read"})
	dir := parser.String("", "dir", &argparse.Options{Help: "Directory of images, read in frame order"})
	glyph := parser.String("g", "glyph", &argparse.Options{Help: "Classify one glyph image and exit"})
	output := parser.String("o", "output", &argparse.Options{Help: "Directory for annotated frames"})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Candidate workers per frame (0 keeps the config)", Default: 0})
	debug := parser.Flag("", "debug", &argparse.Options{Help: "Enable debug logging and write plate masks"})
	profile := parser.Flag("", "profile", &argparse.Options{Help: "Log stage timings periodically"})
	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	opts := options{
		model:   *model,
		labels:  *labels,
		config:  *configPath,
		device:  *device,
		video:   *video,
		image:   *imagePath,
		dir:     *dir,
		glyph:   *glyph,
		output:  *output,
		workers: *workers,
		debug:   *debug,
		profile: *profile,
	}

	logger := initLogger(opts.debug)
	if err := run(opts, logger); err != nil {
		entry := logger.WithError(err)
		if errors.Is(err, inference.ErrModelLoad) {
			entry.Error("cannot start without a model")
		} else {
			entry.Error("recognition stopped")
		}
		os.Exit(1)
	}
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}

func run(opts options, logger *logrus.Logger) error {
	cfg, err := config.Load(opts.config)
	if err != nil {
		return err
	}
	if opts.model != "" {
		cfg.Model.Path = opts.model
	}
	if opts.labels != "" {
		cfg.Model.LabelsPath = opts.labels
	}
	if opts.workers > 0 {
		cfg.Plate.Workers = opts.workers
	}

	var rec profiler.Recorder = profiler.Nop{}
	if opts.profile {
		rp := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{Logger: logger})
		rp.Start()
		defer func() {
			rp.Stop()
			rp.Report()
		}()
		rec = rp
	}

	model, err := inference.LoadModel(cfg.Model)
	if err != nil {
		return err
	}
	defer model.Close()
	logger.WithFields(logrus.Fields{
		"model":  cfg.Model.Path,
		"labels": len(model.Labels()),
	}).Info("model loaded")

	seg, err := segment.NewSegmenter(cfg.Segment, segment.WithLogger(logger))
	if err != nil {
		return err
	}
	finder, err := plate.NewFinder(cfg.Plate, seg, plate.WithLogger(logger), plate.WithRecorder(rec))
	if err != nil {
		return err
	}
	defer finder.Close()

	classifier, err := recognition.NewClassifier(model, cfg.Recognition)
	if err != nil {
		return err
	}
	if opts.glyph != "" {
		return classifyGlyph(classifier, opts.glyph)
	}

	session, err := recognition.NewSession(finder, classifier,
		recognition.WithLogger(logger), recognition.WithRecorder(rec))
	if err != nil {
		return err
	}

	ctrl, err := controller.New(session, cfg.Controller,
		controller.WithLogger(logger), controller.WithRecorder(rec))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	src, err := openSource(opts, logger)
	if err != nil {
		return err
	}
	defer src.Close()

	if opts.output != "" {
		if err := os.MkdirAll(opts.output, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &writer{out: opts.output, debug: opts.debug, finder: finder, log: logger}
	err = ctrl.Run(ctx, src, w.handle)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted")
		return nil
	}
	return err
}

// classifyGlyph prints the label of a single pre-cropped glyph image.
func classifyGlyph(classifier *recognition.Classifier, path string) error {
	f, err := util.LoadImageFile(path)
	if err != nil {
		return err
	}
	img, err := util.DecodeImage(f)
	if err != nil {
		return err
	}
	g, err := classifier.ClassifyImage(img)
	if err != nil {
		return err
	}
	fmt.Printf("%s %.3f\n", g.Label, g.Score)
	return nil
}

// writer prints recognised plates and saves annotated frames.
type writer struct {
	out    string
	debug  bool
	finder *plate.Finder
	log    logrus.FieldLogger
}

func (w *writer) handle(res controller.Result) error {
	log := w.log.WithField("frame", res.Frame.ID)
	if res.Err != nil {
		log.WithError(res.Err).Error("frame failed")
		return nil
	}
	if len(res.Plates) == 0 {
		return nil
	}

	for _, p := range res.Plates {
		fmt.Printf("%s @ (%d,%d)\n", p.Text, p.Origin.X, p.Origin.Y)
		log.WithFields(logrus.Fields{
			"plate":   p.Text,
			"box":     p.Box,
			"skipped": p.Skipped,
		}).Debug("plate recognised")
	}

	if w.out == "" {
		return nil
	}

	annotated := res.Frame.Image.Clone()
	defer annotated.Close()
	for _, p := range res.Plates {
		images.DrawPlate(&annotated, p.Box, p.Text)
	}
	name := filepath.Join(w.out, fmt.Sprintf("frame-%06d.jpg", res.Frame.ID))
	if !gocv.IMWrite(name, annotated) {
		return errors.Errorf("write %s", name)
	}

	if w.debug {
		mask, err := w.finder.Mask(res.Frame.Image)
		if err != nil {
			return err
		}
		defer mask.Close()
		gocv.IMWrite(filepath.Join(w.out, fmt.Sprintf("mask-%06d.png", res.Frame.ID)), mask)
	}
	return nil
}
