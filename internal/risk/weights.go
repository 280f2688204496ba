package risk

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// WeightTolerance is the allowed deviation of a table's sum from 1.0.
const WeightTolerance = 1e-6

// ErrInvalidWeights is returned for any weight table that fails validation.
var ErrInvalidWeights = errors.New("invalid weight table")

//go:embed default_weights.yaml
var defaultWeightsYAML []byte

// Weight assigns a weight to one named signal.
type Weight struct {
	Signal string  `yaml:"signal" json:"signal"`
	Weight float64 `yaml:"weight" json:"weight"`
}

// Table is the ordered weight list for one input kind.
type Table struct {
	Kind    InputKind
	Entries []Weight
}

// Signals returns the signal names in evaluation order.
func (t Table) Signals() []string {
	names := make([]string, len(t.Entries))
	for i, e := range t.Entries {
		names[i] = e.Signal
	}
	return names
}

// Weights holds a table per input kind.
type Weights map[InputKind]Table

// For returns the table for kind.
func (w Weights) For(kind InputKind) (Table, bool) {
	t, ok := w[kind]
	return t, ok
}

// DefaultWeights returns the built-in tables.
func DefaultWeights() Weights {
	w, err := ParseWeights(defaultWeightsYAML)
	if err != nil {
		panic(fmt.Sprintf("risk: embedded weights are malformed: %v", err))
	}
	return w
}

// ParseWeights decodes a YAML document mapping kind names to ordered
// {signal, weight} lists. It does not validate sums or signal names.
func ParseWeights(data []byte) (Weights, error) {
	var raw map[string][]Weight
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWeights, err)
	}

	out := make(Weights, len(raw))
	for name, entries := range raw {
		kind, err := ParseInputKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidWeights, err)
		}
		out[kind] = Table{Kind: kind, Entries: entries}
	}
	return out, nil
}

// LoadWeights returns the built-in tables with any tables from path
// replacing them kind by kind. An empty path yields the defaults.
func LoadWeights(path string) (Weights, error) {
	weights := DefaultWeights()
	if path == "" {
		return weights, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights file: %w", err)
	}
	overrides, err := ParseWeights(data)
	if err != nil {
		return nil, err
	}
	for kind, table := range overrides {
		weights[kind] = table
	}
	return weights, nil
}

// Validate checks every table: a table exists for each kind, weights are
// finite and non-negative, names are unique and known, and the weights sum
// to 1 within WeightTolerance. known may be nil to skip the name check.
func (w Weights) Validate(known func(signal string) bool) error {
	for _, kind := range AllKinds {
		table, ok := w[kind]
		if !ok {
			return fmt.Errorf("%w: no table for %s", ErrInvalidWeights, kind)
		}
		if err := table.Validate(known); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single table.
func (t Table) Validate(known func(signal string) bool) error {
	if len(t.Entries) == 0 {
		return fmt.Errorf("%w: %s table is empty", ErrInvalidWeights, t.Kind)
	}

	seen := make(map[string]struct{}, len(t.Entries))
	var sum float64
	for _, e := range t.Entries {
		if e.Signal == "" {
			return fmt.Errorf("%w: %s table has an unnamed signal", ErrInvalidWeights, t.Kind)
		}
		if _, dup := seen[e.Signal]; dup {
			return fmt.Errorf("%w: %s table lists %q twice", ErrInvalidWeights, t.Kind, e.Signal)
		}
		seen[e.Signal] = struct{}{}

		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight < 0 {
			return fmt.Errorf("%w: %s.%s weight %v must be a non-negative number", ErrInvalidWeights, t.Kind, e.Signal, e.Weight)
		}
		if known != nil && !known(e.Signal) {
			return fmt.Errorf("%w: %s table references unknown signal %q", ErrInvalidWeights, t.Kind, e.Signal)
		}
		sum += e.Weight
	}

	if math.Abs(sum-1.0) > WeightTolerance {
		return fmt.Errorf("%w: %s weights sum to %.9f, want 1.0", ErrInvalidWeights, t.Kind, sum)
	}
	return nil
}

// SignalNames returns every signal referenced by any table, sorted.
func (w Weights) SignalNames() []string {
	set := make(map[string]struct{})
	for _, t := range w {
		for _, e := range t.Entries {
			set[e.Signal] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
