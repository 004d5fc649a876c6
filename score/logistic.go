package score

import (
	"fmt"
	"math"
)

// Logistic scores with a plain logistic regression: sigmoid(w·x + b).
// Exported coefficient sets travel well in the YAML descriptor and need no
// native runtime, which also makes this the backend of choice in tests.
type Logistic struct {
	features []string
	weights  []float64
	bias     float64
}

func NewLogistic(features []string, weights []float64, bias float64) (*Logistic, error) {
	if len(weights) != len(features) {
		return nil, fmt.Errorf("logistic: %d weights for %d features", len(weights), len(features))
	}
	return &Logistic{
		features: append([]string(nil), features...),
		weights:  append([]float64(nil), weights...),
		bias:     bias,
	}, nil
}

func (l *Logistic) Features() []string { return l.features }

func (l *Logistic) Predict(values []float64) (float64, error) {
	if err := checkRow(l.features, values); err != nil {
		return 0, err
	}

	z := l.bias
	for i, w := range l.weights {
		z += w * values[i]
	}
	return 1.0 / (1.0 + math.Exp(-z)), nil
}

func (l *Logistic) Close() error { return nil }
