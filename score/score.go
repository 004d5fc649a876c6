// Package score provides per-symbol predictive scorers. A scorer wraps an
// exported classifier and turns one feature row into the probability that
// the symbol's forward return exceeds the training target. The simulation
// treats scorers as opaque: features in, probability out.
package score

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scorer produces a probability in [0,1] from one feature row. Values must
// be supplied in the exact order reported by Features.
type Scorer interface {
	Features() []string
	Predict(values []float64) (float64, error)
	Close() error
}

// Descriptor is the on-disk model descriptor, one YAML file per symbol
// (<SYMBOL>_model.yaml) next to the exported model artifacts.
type Descriptor struct {
	Symbol   string    `yaml:"symbol"`
	Backend  string    `yaml:"backend"` // "logistic" or "onnx"
	Features []string  `yaml:"features"`
	Weights  []float64 `yaml:"weights,omitempty"` // logistic
	Bias     float64   `yaml:"bias,omitempty"`    // logistic
	Model    string    `yaml:"model,omitempty"`   // onnx artifact, relative to the descriptor
}

// Provider maps symbols to their scorers. It is an explicit registry built
// at construction; there is no process-wide model state.
type Provider struct {
	scorers map[string]Scorer
}

func NewProvider() *Provider {
	return &Provider{scorers: make(map[string]Scorer)}
}

// Register adds or replaces the scorer for a symbol.
func (p *Provider) Register(symbol string, s Scorer) {
	p.scorers[symbol] = s
}

// Lookup returns the scorer for a symbol, if one is registered.
func (p *Provider) Lookup(symbol string) (Scorer, bool) {
	s, ok := p.scorers[symbol]
	return s, ok
}

// Symbols returns every registered symbol, sorted.
func (p *Provider) Symbols() []string {
	out := make([]string, 0, len(p.scorers))
	for sym := range p.scorers {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (p *Provider) Len() int { return len(p.scorers) }

// Close releases every scorer. Safe to call once at end of run.
func (p *Provider) Close() error {
	var first error
	for _, s := range p.scorers {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

const descriptorSuffix = "_model.yaml"

// LoadDir builds a Provider from every <SYMBOL>_model.yaml under dir.
// ONNX-backed descriptors need a configured runtime; pass nil to skip them.
// A descriptor that fails to load is returned in the skipped map rather
// than failing the whole directory.
func LoadDir(dir string, rt *Runtime) (*Provider, map[string]error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read models dir: %w", err)
	}

	p := NewProvider()
	skipped := make(map[string]error)

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), descriptorSuffix) {
			continue
		}
		symbol := strings.TrimSuffix(e.Name(), descriptorSuffix)

		s, err := LoadScorer(filepath.Join(dir, e.Name()), rt)
		if err != nil {
			skipped[symbol] = err
			continue
		}
		p.Register(symbol, s)
	}

	return p, skipped, nil
}

// LoadScorer reads one descriptor file and constructs its backend.
func LoadScorer(path string, rt *Runtime) (Scorer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var d Descriptor
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	if len(d.Features) == 0 {
		return nil, fmt.Errorf("descriptor %s declares no features", path)
	}

	switch strings.ToLower(d.Backend) {
	case "logistic", "":
		return NewLogistic(d.Features, d.Weights, d.Bias)
	case "onnx":
		if rt == nil {
			return nil, fmt.Errorf("descriptor %s needs the ONNX runtime, which is not configured", path)
		}
		return rt.Open(filepath.Join(filepath.Dir(path), d.Model), d.Features)
	default:
		return nil, fmt.Errorf("unknown backend %q in %s", d.Backend, path)
	}
}

// checkRow validates one feature row against the declared feature list.
func checkRow(features []string, values []float64) error {
	if len(values) != len(features) {
		return fmt.Errorf("got %d feature values, model expects %d", len(values), len(features))
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("feature %q is not finite", features[i])
		}
	}
	return nil
}
