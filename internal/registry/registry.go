// internal/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/signalnine/hostwatch/internal/logging"
)

// Kind names a persisted model
type Kind string

const (
	KindAnomaly       Kind = "anomaly"
	KindLogClassifier Kind = "log_classifier"
)

// ErrModelNotFound is returned by Load when no artifact exists for a kind
var ErrModelNotFound = errors.New("model not found")

// Validator is implemented by models that can check themselves after decoding
type Validator interface {
	Validate() error
}

// Registry maps model kinds to artifact paths
type Registry struct {
	paths  map[Kind]string
	logger *zap.Logger
}

// New creates a registry over the given artifact paths
func New(paths map[Kind]string, logger *zap.Logger) *Registry {
	return &Registry{paths: paths, logger: logging.OrNop(logger)}
}

// Path returns the artifact location for kind
func (r *Registry) Path(kind Kind) (string, error) {
	p, ok := r.paths[kind]
	if !ok || p == "" {
		return "", fmt.Errorf("no path configured for model %q", kind)
	}
	return p, nil
}

// Exists reports whether an artifact for kind is on disk
func (r *Registry) Exists(kind Kind) bool {
	p, err := r.Path(kind)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Save replaces the artifact for kind. The new file is written beside the
// old one and renamed over it, so readers see either version, never a mix.
func (r *Registry) Save(kind Kind, model any) error {
	p, err := r.Path(kind)
	if err != nil {
		return err
	}

	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("encode %s model: %w", kind, err)
	}

	if err := WriteFileAtomic(p, data); err != nil {
		return fmt.Errorf("save %s model: %w", kind, err)
	}
	r.logger.Info("saved model", zap.String("kind", string(kind)), zap.String("path", p))
	return nil
}

// Load decodes the artifact for kind into model
func (r *Registry) Load(kind Kind, model any) error {
	p, err := r.Path(kind)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s model at %s: %w", kind, p, ErrModelNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s model: %w", kind, err)
	}

	if err := json.Unmarshal(data, model); err != nil {
		return fmt.Errorf("decode %s model: %w", kind, err)
	}
	if v, ok := model.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("invalid %s model: %w", kind, err)
		}
	}
	return nil
}

// LoadOrTrain returns the persisted model of kind unless force is set or none
// exists; otherwise it trains a fresh one and persists it. A failed train
// leaves any previous artifact untouched.
func LoadOrTrain[M any](r *Registry, kind Kind, force bool, train func() (M, error)) (M, error) {
	var zero M

	if !force {
		var model M
		err := r.Load(kind, &model)
		if err == nil {
			if v, ok := any(model).(Validator); ok {
				if err := v.Validate(); err != nil {
					return zero, fmt.Errorf("invalid %s model: %w", kind, err)
				}
			}
			r.logger.Info("loaded existing model", zap.String("kind", string(kind)))
			return model, nil
		}
		if !errors.Is(err, ErrModelNotFound) {
			return zero, err
		}
	}

	r.logger.Info("training new model", zap.String("kind", string(kind)), zap.Bool("force_retrain", force))
	model, err := train()
	if err != nil {
		return zero, err
	}
	if err := r.Save(kind, model); err != nil {
		return zero, err
	}
	return model, nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
