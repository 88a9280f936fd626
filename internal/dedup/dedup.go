// Package dedup decides whether a provider response is a re-delivery of one
// already recorded for the same turn.
package dedup

import (
	"strings"
	"unicode/utf8"

	"avatar-relay/internal/model"
)

// DefaultThreshold is the largest length difference, in characters, at which
// one response containing another still counts as the same answer.
const DefaultThreshold = 20

// Guard applies the duplicate rule. The zero value uses DefaultThreshold.
type Guard struct {
	Threshold int
}

// New returns a Guard with the given threshold. Non-positive values select
// DefaultThreshold.
func New(threshold int) Guard {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return Guard{Threshold: threshold}
}

func (g Guard) threshold() int {
	if g.Threshold <= 0 {
		return DefaultThreshold
	}
	return g.Threshold
}

// ShouldAccept reports whether candidate may be appended to existing. It is
// rejected when an existing response from the same provider carries the same
// or nearly the same text.
func (g Guard) ShouldAccept(existing []model.ProviderResponse, candidate model.ProviderResponse) bool {
	for _, r := range existing {
		if r.Provider != candidate.Provider {
			continue
		}
		if g.IsDuplicate(r.Content, candidate.Content) {
			return false
		}
	}
	return true
}

// IsDuplicate compares two texts after trimming: they are duplicates when
// equal, or when one contains the other and their lengths differ by less than
// the threshold.
func (g Guard) IsDuplicate(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	if a == b {
		return true
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return false
	}
	diff := utf8.RuneCountInString(a) - utf8.RuneCountInString(b)
	if diff < 0 {
		diff = -diff
	}
	return diff < g.threshold()
}
