package valuation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
)

// Linear is a per-good additive scorer: the score of a set of goods is
// the sum of the configured weight of each good the set contains,
// unknown goods contributing nothing. Its scoring function is encoded
// as "good=weight,good=weight,...", sorted by good name, so two
// Linear instances initialized from the same config produce identical
// strings.
type Linear struct {
	weights map[string]float64
}

// NewLinear returns a Linear scorer with the given weights. Goods not
// present in weights score zero.
func NewLinear(weights map[string]float64) *Linear {
	cp := make(map[string]float64, len(weights))
	for k, v := range weights {
		cp[k] = v
	}
	return &Linear{weights: cp}
}

type linearConfig struct {
	Valuation struct {
		Goods []struct {
			Name   string  `toml:"name"`
			Weight float64 `toml:"weight"`
		} `toml:"goods"`
	} `toml:"valuation"`
}

// Initialize loads [[valuation.goods]] entries (name, weight) from
// configFile, replacing any weights passed to NewLinear.
func (l *Linear) Initialize(configFile string) error {
	var cfg linearConfig
	if _, err := toml.DecodeFile(configFile, &cfg); err != nil {
		return errors.Annotatef(err, "valuation: failed to parse %q", configFile)
	}

	weights := make(map[string]float64, len(cfg.Valuation.Goods))
	for _, g := range cfg.Valuation.Goods {
		weights[g.Name] = g.Weight
	}
	l.weights = weights
	return nil
}

// GenerateScoringFunction encodes the current weights as
// "good=weight,good=weight,...".
func (l *Linear) GenerateScoringFunction() string {
	names := make([]string, 0, len(l.weights))
	for name := range l.weights {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, strconv.FormatFloat(l.weights[name], 'g', -1, 64)))
	}
	return strings.Join(parts, ",")
}

// GetScore parses scoreFunction and sums the weight of every good in
// goods that appears in it.
func (l *Linear) GetScore(scoreFunction string, goods []string) (float64, error) {
	weights := make(map[string]float64)
	if scoreFunction != "" {
		for _, term := range strings.Split(scoreFunction, ",") {
			name, weightStr, ok := strings.Cut(term, "=")
			if !ok {
				return 0, errors.Errorf("valuation: malformed scoring function term %q", term)
			}
			weight, err := strconv.ParseFloat(weightStr, 64)
			if err != nil {
				return 0, errors.Annotatef(err, "valuation: malformed weight in term %q", term)
			}
			weights[name] = weight
		}
	}

	var total float64
	for _, good := range goods {
		total += weights[good]
	}
	return total, nil
}

