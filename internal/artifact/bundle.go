// Package artifact loads the pre-fitted model artifacts listed in a YAML
// manifest: encoder vocabulary, feature lists, imputation means, clamping
// bounds and regression weights.
//
// A Bundle is loaded once at startup and never modified afterwards, so it
// can be shared by concurrent requests.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/autoprice/resale-engine/internal/config"
	"github.com/autoprice/resale-engine/internal/encoder"
	"github.com/autoprice/resale-engine/internal/numeric"
	"github.com/autoprice/resale-engine/internal/regression"
)

// Model identifiers.
const (
	Model1 = "model1"
	Model2 = "model2"
)

// Metrics are the holdout scores published with a model.
type Metrics struct {
	R2    float64 `yaml:"r2" json:"r2"`
	MSE   float64 `yaml:"mse" json:"mse"`
	WMSPE float64 `yaml:"wmspe" json:"wmspe"`
}

// ModelFiles is one model entry of the manifest.
type ModelFiles struct {
	Description string  `yaml:"description"`
	Metrics     Metrics `yaml:"metrics"`
	Encoder     string  `yaml:"encoder"`
	Features    string  `yaml:"features"`
	Bounds      string  `yaml:"bounds"`
	Means       string  `yaml:"means"`
	Regressor   string  `yaml:"regressor"`
}

// Manifest is the on-disk index of a bundle.
type Manifest struct {
	Version string     `yaml:"version"`
	Model1  ModelFiles `yaml:"model1"`
	Model2  ModelFiles `yaml:"model2"`
}

// Info describes a loaded model.
type Info struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Metrics     Metrics `json:"metrics"`
	Features    int     `json:"feature_count"`
}

// CategoricalModel holds the artifacts of the one-hot model.
type CategoricalModel struct {
	Info      Info
	Encoder   encoder.Encoder
	Features  []string
	Regressor *regression.Linear
}

// FullModel holds the artifacts of the full-feature model.
type FullModel struct {
	Info      Info
	Features  []string
	Params    numeric.Params
	Regressor *regression.Linear
}

// Bundle is every artifact needed to serve both models.
type Bundle struct {
	Version string
	Model1  CategoricalModel
	Model2  FullModel
}

// Models lists the loaded models in identifier order.
func (b *Bundle) Models() []Info {
	return []Info{b.Model1.Info, b.Model2.Info}
}

// Regressor returns the weights of a model by identifier.
func (b *Bundle) Regressor(id string) (*regression.Linear, bool) {
	switch id {
	case Model1:
		return b.Model1.Regressor, true
	case Model2:
		return b.Model2.Regressor, true
	}
	return nil, false
}

// ErrInvalidBundle wraps every load failure.
var ErrInvalidBundle = errors.New("artifact: invalid bundle")

// Load reads the manifest at path and every file it references. Relative
// paths are resolved against the manifest's directory.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", ErrInvalidBundle, err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %v", ErrInvalidBundle, err)
	}

	l := loader{base: path}
	b := &Bundle{Version: m.Version}
	if b.Model1, err = l.categorical(m.Model1); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBundle, Model1, err)
	}
	if b.Model2, err = l.full(m.Model2); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidBundle, Model2, err)
	}
	return b, nil
}

type loader struct {
	base string
}

func (l loader) resolve(name, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("%s path is not set", name)
	}
	return config.ResolveRelativePath(l.base, rel), nil
}

func (l loader) decode(name, rel string, v any) error {
	path, err := l.resolve(name, rel)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (l loader) features(rel string) ([]string, error) {
	var names []string
	if err := l.decode("features", rel, &names); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errors.New("feature list is empty")
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return nil, fmt.Errorf("feature %q listed twice", n)
		}
		seen[n] = true
	}
	return names, nil
}

func (l loader) regressor(rel string) (*regression.Linear, error) {
	path, err := l.resolve("regressor", rel)
	if err != nil {
		return nil, err
	}
	return regression.LoadLinearFile(path)
}

func (l loader) categorical(files ModelFiles) (CategoricalModel, error) {
	var out CategoricalModel
	path, err := l.resolve("encoder", files.Encoder)
	if err != nil {
		return out, err
	}
	enc, err := encoder.LoadOneHotFile(path)
	if err != nil {
		return out, err
	}
	if out.Features, err = l.features(files.Features); err != nil {
		return out, err
	}
	if out.Regressor, err = l.regressor(files.Regressor); err != nil {
		return out, err
	}
	out.Encoder = enc
	out.Info = Info{ID: Model1, Description: files.Description, Metrics: files.Metrics, Features: len(out.Features)}
	return out, nil
}

func (l loader) full(files ModelFiles) (FullModel, error) {
	var out FullModel
	var err error
	if out.Features, err = l.features(files.Features); err != nil {
		return out, err
	}
	if err = l.decode("means", files.Means, &out.Params.Means); err != nil {
		return out, err
	}
	if err = l.decode("bounds", files.Bounds, &out.Params.Bounds); err != nil {
		return out, err
	}
	if err = out.Params.Validate(); err != nil {
		return out, err
	}
	if out.Regressor, err = l.regressor(files.Regressor); err != nil {
		return out, err
	}
	out.Info = Info{ID: Model2, Description: files.Description, Metrics: files.Metrics, Features: len(out.Features)}
	return out, nil
}
