package matcher

import (
	"fmt"

	"github.com/dyluth/frontdesk/pkg/helpdesk"
)

// DefaultAcceptanceThreshold is the minimum fuzzy score at which a learned
// answer is reused instead of escalating.
const DefaultAcceptanceThreshold = 0.35

// Matcher picks the best reusable answer for a question.
type Matcher struct {
	Threshold float64
	Scorer    Scorer
}

// New creates a Matcher after validating its parameters.
func New(threshold float64, scorer Scorer) (*Matcher, error) {
	if !(threshold >= 0 && threshold <= 1) {
		return nil, fmt.Errorf("acceptance threshold must be between 0 and 1, got %v", threshold)
	}
	if err := scorer.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{Threshold: threshold, Scorer: scorer}, nil
}

// Default returns a Matcher with the default threshold and weights.
func Default() *Matcher {
	return &Matcher{Threshold: DefaultAcceptanceThreshold, Scorer: DefaultScorer()}
}

// Match describes the best candidate found. When FindBestAnswer reports no
// match, Entry is the closest rejected candidate (or nil) so callers can log
// near misses.
type Match struct {
	Entry    *helpdesk.KnowledgeEntry
	Decision Decision
	Score    float64
}

// Answer returns the matched entry's answer, or "" when there is no entry.
func (m Match) Answer() string {
	if m.Entry == nil {
		return ""
	}
	return m.Entry.Answer
}

// Accepts reports whether a fuzzy score clears the threshold (inclusive).
func (m *Matcher) Accepts(score float64) bool {
	return score >= m.Threshold
}

// FindBestAnswer scans entries in order. The first exact or substring match
// wins immediately. Otherwise the highest fuzzy score wins, earlier entries
// winning ties, and is accepted only if it clears the threshold.
//
// A blank question or an empty entry list never matches. Entries whose
// question normalizes to "" are skipped.
func (m *Matcher) FindBestAnswer(question string, entries []*helpdesk.KnowledgeEntry) (Match, bool) {
	qNorm := Normalize(question)
	if qNorm == "" || len(entries) == 0 {
		return Match{}, false
	}
	qTokens := tokensOf(qNorm)

	var best Match
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		cNorm := Normalize(entry.Question)
		if cNorm == "" {
			continue
		}

		score := m.Scorer.score(qNorm, qTokens, cNorm)
		if score.Decision == DecisionExactOrSubstring {
			return Match{Entry: entry, Decision: DecisionExactOrSubstring, Score: score.Value}, true
		}

		if score.Value > best.Score {
			best = Match{Entry: entry, Decision: DecisionFuzzy, Score: score.Value}
		}
	}

	if best.Entry == nil {
		return best, false
	}
	return best, m.Accepts(best.Score)
}
