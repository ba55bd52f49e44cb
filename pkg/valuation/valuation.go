// Package valuation implements pluggable scoring functions bidders can
// use to value a combination of goods, grounded in the contract of
// jack.valuations.Valuation from the original tree. It is an external
// collaborator: no auction task calls into it directly.
package valuation

// Valuation assigns scores to combinations of goods under a scoring
// function the implementation itself generates and encodes as a
// string, so the function can be handed to a client without either
// side needing shared code.
type Valuation interface {
	// Initialize reads parameters from a config file.
	Initialize(configFile string) error

	// GenerateScoringFunction encodes a scoring function as a string.
	GenerateScoringFunction() string

	// GetScore computes the score a set of goods achieves under a
	// scoring function previously produced by GenerateScoringFunction.
	GetScore(scoreFunction string, goods []string) (float64, error)
}
