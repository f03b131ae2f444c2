package matcher

import (
	"fmt"
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Default weights for the fuzzy score.
const (
	DefaultJaccardWeight = 0.7
	DefaultRatioWeight   = 0.3
)

// Decision says how a candidate matched.
type Decision int

const (
	// DecisionFuzzy means the candidate was scored by weighted similarity.
	DecisionFuzzy Decision = iota

	// DecisionExactOrSubstring means the normalized strings were equal or one
	// contained the other. Such a candidate is always accepted.
	DecisionExactOrSubstring
)

func (d Decision) String() string {
	switch d {
	case DecisionExactOrSubstring:
		return "exact_or_substring"
	default:
		return "fuzzy"
	}
}

// Score is the outcome of comparing one query to one candidate question.
// Jaccard and Ratio are the components of a fuzzy Value; both are zero for
// exact or substring decisions.
type Score struct {
	Decision Decision
	Value    float64
	Jaccard  float64
	Ratio    float64
}

// Scorer combines token overlap and character similarity.
// The zero value is not useful; use DefaultScorer or set both weights.
type Scorer struct {
	JaccardWeight float64
	RatioWeight   float64
}

// DefaultScorer returns the 0.7 Jaccard / 0.3 ratio scorer.
func DefaultScorer() Scorer {
	return Scorer{JaccardWeight: DefaultJaccardWeight, RatioWeight: DefaultRatioWeight}
}

// Validate checks that both weights are in [0, 1] and sum to 1. NaN weights
// are rejected.
func (s Scorer) Validate() error {
	if !(s.JaccardWeight >= 0 && s.JaccardWeight <= 1) {
		return fmt.Errorf("jaccard weight must be between 0 and 1, got %v", s.JaccardWeight)
	}
	if !(s.RatioWeight >= 0 && s.RatioWeight <= 1) {
		return fmt.Errorf("ratio weight must be between 0 and 1, got %v", s.RatioWeight)
	}
	if math.Abs(s.JaccardWeight+s.RatioWeight-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %v + %v", s.JaccardWeight, s.RatioWeight)
	}
	return nil
}

// Score compares a raw query against a raw candidate question.
func (s Scorer) Score(query, candidate string) Score {
	qNorm := Normalize(query)
	return s.score(qNorm, tokensOf(qNorm), Normalize(candidate))
}

// score works on a pre-normalized query so FindBestAnswer normalizes it once.
// An empty side never counts as a substring of the other.
func (s Scorer) score(qNorm string, qTokens map[string]struct{}, cNorm string) Score {
	if qNorm == "" || cNorm == "" {
		return Score{Decision: DecisionFuzzy}
	}

	if qNorm == cNorm || strings.Contains(cNorm, qNorm) || strings.Contains(qNorm, cNorm) {
		return Score{Decision: DecisionExactOrSubstring, Value: 1}
	}

	jaccard := Jaccard(qTokens, tokensOf(cNorm))
	ratio := Ratio(qNorm, cNorm)
	return Score{
		Decision: DecisionFuzzy,
		Value:    s.JaccardWeight*jaccard + s.RatioWeight*ratio,
		Jaccard:  jaccard,
		Ratio:    ratio,
	}
}

// Jaccard is |a ∩ b| / |a ∪ b|, or 0 when either set is empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Ratio is the difflib sequence-matcher similarity of two strings compared
// character by character: 2*M/T where M is the matched length and T the
// combined length.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
