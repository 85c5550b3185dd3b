// Package config - YAML configuration for the recognition pipeline.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/nvr-ai/go-lpr/controller"
	"github.com/nvr-ai/go-lpr/inference"
	"github.com/nvr-ai/go-lpr/plate"
	"github.com/nvr-ai/go-lpr/recognition"
	"github.com/nvr-ai/go-lpr/segment"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config aggregates the settings of every pipeline stage.
type Config struct {
	Plate       plate.Config          `json:"plate"       yaml:"plate"`
	Segment     segment.Config        `json:"segment"     yaml:"segment"`
	Model       inference.ModelConfig `json:"model"       yaml:"model"`
	Recognition recognition.Config    `json:"recognition" yaml:"recognition"`
	Controller  controller.Config     `json:"controller"  yaml:"controller"`
}

// Default returns the defaults of every stage. Model paths are left empty.
func Default() Config {
	return Config{
		Plate:       plate.DefaultConfig(),
		Segment:     segment.DefaultConfig(),
		Model:       inference.DefaultModelConfig(),
		Recognition: recognition.DefaultConfig(),
		Controller:  controller.DefaultConfig(),
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrapf(err, "parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks every stage except the model, whose paths may come from flags.
func (c Config) Validate() error {
	if err := c.Plate.Validate(); err != nil {
		return errors.Wrap(err, "plate")
	}
	if err := c.Segment.Validate(); err != nil {
		return errors.Wrap(err, "segment")
	}
	if err := c.Recognition.Validate(); err != nil {
		return errors.Wrap(err, "recognition")
	}
	if c.Controller.MotionThreshold > 0 {
		if err := c.Controller.Motion.Validate(); err != nil {
			return errors.Wrap(err, "controller")
		}
	}
	return nil
}
