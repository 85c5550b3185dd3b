// Package controller - Frame loop feeding a capture source through the recognition pipeline.
package controller

import (
	"context"
	"time"

	"github.com/nvr-ai/go-lpr/profiler"
	"github.com/nvr-ai/go-lpr/recognition"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// ErrSourceStalled is returned when a source keeps producing empty frames.
var ErrSourceStalled = errors.New("source returned too many empty frames")

// Source produces frames. Read fills dst and reports false once the source is exhausted.
type Source interface {
	Read(dst *gocv.Mat) bool
}

// Recognizer reads the plates of a single frame.
type Recognizer interface {
	Recognize(frame gocv.Mat) ([]recognition.PlateResult, error)
}

// Frame is a single frame of video.
type Frame struct {
	ID        int
	Image     gocv.Mat
	Timestamp time.Time
}

// Result is the outcome of one frame.
type Result struct {
	Frame Frame
	// Plates are the recognised plates, empty when nothing was found.
	Plates []recognition.PlateResult
	// Err is set when the frame could not be processed. The loop continues.
	Err error
	// Motion is the frame's motion score, or 1 when motion gating is off.
	Motion float64
	// Static is set when recognition was skipped because the scene did not change.
	Static bool
}

// Handler receives every frame result. The frame Mat is only valid during the call.
// Returning an error stops the loop.
type Handler func(Result) error

// Config controls the frame loop.
type Config struct {
	// MaxEmptyReads is how many consecutive empty frames are tolerated before giving up.
	MaxEmptyReads int `json:"max_empty_reads" yaml:"max_empty_reads"`
	// MotionThreshold skips frames whose motion score is below it. Zero disables gating.
	MotionThreshold float64 `json:"motion_threshold" yaml:"motion_threshold"`
	// Motion configures the frame differencing used for gating.
	Motion MotionConfig `json:"motion" yaml:"motion"`
}

// DefaultConfig returns a loop that processes every frame.
func DefaultConfig() Config {
	return Config{
		MaxEmptyReads: 30,
		Motion:        DefaultMotionConfig(),
	}
}

// Controller pulls frames from a source one at a time and runs each through a Recognizer.
type Controller struct {
	recognizer Recognizer
	cfg        Config
	motion     *MotionDetector
	log        logrus.FieldLogger
	rec        profiler.Recorder
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) {
		c.log = log
	}
}

// WithRecorder sets the recorder that receives per-frame timings.
func WithRecorder(rec profiler.Recorder) Option {
	return func(c *Controller) {
		c.rec = rec
	}
}

// New creates a controller.
//
// Arguments:
//   - recognizer: Reads plates from each frame.
//   - cfg: Loop settings.
//   - opts: Optional logger and recorder.
//
// Returns:
//   - *Controller: The controller. Close it to release the motion state.
//   - error: An error if the configuration is invalid.
func New(recognizer Recognizer, cfg Config, opts ...Option) (*Controller, error) {
	if recognizer == nil {
		return nil, errors.New("recognizer is nil")
	}
	if cfg.MaxEmptyReads < 0 {
		return nil, errors.Errorf("max empty reads must not be negative, got %d", cfg.MaxEmptyReads)
	}

	c := &Controller{
		recognizer: recognizer,
		cfg:        cfg,
		log:        logrus.StandardLogger(),
		rec:        profiler.Nop{},
	}
	if cfg.MotionThreshold > 0 {
		md, err := NewMotionDetector(cfg.Motion)
		if err != nil {
			return nil, err
		}
		c.motion = md
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run processes frames until the source is exhausted, the context is cancelled or the
// handler returns an error.
//
// Each frame is processed to completion before the next is read; cancellation is checked
// between frames only.
//
// Returns:
//   - error: nil on exhaustion, ctx.Err() on cancellation, ErrSourceStalled, or the handler error.
func (c *Controller) Run(ctx context.Context, src Source, handle Handler) error {
	img := gocv.NewMat()
	defer img.Close()

	empty := 0
	for id := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}

		if !src.Read(&img) {
			c.log.WithField("frames", id).Info("source exhausted")
			return nil
		}
		if img.Empty() {
			empty++
			if empty > c.cfg.MaxEmptyReads {
				return errors.Wrapf(ErrSourceStalled, "%d consecutive empty reads", empty)
			}
			continue
		}
		empty = 0

		res := c.process(Frame{ID: id, Image: img, Timestamp: time.Now()})
		id++

		if err := handle(res); err != nil {
			return err
		}
	}
}

func (c *Controller) process(frame Frame) Result {
	defer c.rec.StartOperation("controller.frame")()

	res := Result{Frame: frame, Motion: 1}
	log := c.log.WithField("frame", frame.ID)

	if c.motion != nil {
		score, err := c.motion.DetectMotion(frame.Image)
		if err != nil {
			res.Err = err
			return res
		}
		res.Motion = score
		if score < c.cfg.MotionThreshold {
			res.Static = true
			log.WithField("motion", score).Trace("static frame skipped")
			return res
		}
	}

	plates, err := c.recognizer.Recognize(frame.Image)
	if err != nil {
		log.WithError(err).Warn("frame skipped")
		res.Err = err
		return res
	}
	res.Plates = plates
	return res
}

// Close releases the motion state.
func (c *Controller) Close() error {
	if c.motion == nil {
		return nil
	}
	return c.motion.Close()
}
