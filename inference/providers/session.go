// Package providers - Runtime initialisation and session options.
package providers

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var initMu sync.Mutex

// InitializeRuntime loads the ONNX Runtime shared library and prepares the environment.
// It is required once per process; later calls are no-ops.
//
// Arguments:
//   - libPath: The library to load. Empty selects GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or the environment fails to initialize.
func InitializeRuntime(libPath string) error {
	initMu.Lock()
	defer initMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if libPath == "" {
		p, err := GetSharedLibPath()
		if err != nil {
			return err
		}
		libPath = p
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
	}

	// Point ONNX Runtime to the exact shared library path (overrides default search).
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "initialize onnxruntime environment")
	}
	return nil
}

// NewSessionOptions creates session options for the configured threading and execution provider.
//
// Order of operations:
//  1. Threading: intra-op and inter-op pool sizes.
//  2. Graph optimization: extended rewrites such as fusion and constant folding.
//  3. Execution provider: CUDA, CoreML or OpenVINO when selected.
//
// The caller owns the returned options and must Destroy them after the session is created.
//
// Arguments:
//   - cfg: The provider configuration.
//
// Returns:
//   - *ort.SessionOptions: The options.
//   - error: An error if an option is rejected or the provider is unavailable.
func NewSessionOptions(cfg Config) (*ort.SessionOptions, error) {
	provider, err := NewProvider(cfg)
	if err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}

	if err := configure(options, cfg, provider); err != nil {
		options.Destroy()
		return nil, err
	}
	return options, nil
}

func configure(options *ort.SessionOptions, cfg Config, provider ExecutionProvider) error {
	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return errors.Wrap(err, "set intra-op threads")
	}
	if err := options.SetInterOpNumThreads(cfg.InterOpThreads); err != nil {
		return errors.Wrap(err, "set inter-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return errors.Wrap(err, "set graph optimization level")
	}
	return provider.Append(options)
}
