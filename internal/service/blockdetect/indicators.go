package blockdetect

import (
	"fmt"
	"strings"

	"github.com/blockpreventer/bridge/internal/model"
)

// Minimum samples before the success-rate and all-failed indicators may fire;
// low-volume profiles would trip them on a single bad send otherwise.
const (
	minSuccessRateSamples = 10
	minRecentFailedWindow = 5

	consecutiveWarnAt = 3
	warnSuccessRate   = 80.0
)

// blockKeywords in provider error text are treated as hard block evidence.
var blockKeywords = []string{
	"blocked", "banned", "suspended", "deactivated", "not registered",
	"rate limit", "too many", "spam", "temporarily unavailable",
}

type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Indicator is one triggered block signal.
type Indicator struct {
	Type     string   `json:"type"`
	Detail   string   `json:"detail"`
	Severity Severity `json:"severity"`
}

// Snapshot is the evidence an evaluation runs over, loaded by the service.
type Snapshot struct {
	ConsecutiveFailures int
	SuccessRate24h      float64
	SentDay             int
	RecentErrors        []string
	Recent30MinTotal    int
	Recent30MinFailed   int
}

// Evaluation is the pure outcome: what fired and how bad it is.
type Evaluation struct {
	Indicators []Indicator
	Severity   Severity
}

// Evaluate runs every indicator over the snapshot. Thresholds for the two
// policy-driven indicators come from the package.
func Evaluate(snap Snapshot, pkg *model.Package) Evaluation {
	var ev Evaluation
	ev.Severity = SeverityNone

	raise := func(ind Indicator) {
		ev.Indicators = append(ev.Indicators, ind)
		if ind.Severity == SeverityCritical {
			ev.Severity = SeverityCritical
		} else if ind.Severity == SeverityWarning && ev.Severity != SeverityCritical {
			ev.Severity = SeverityWarning
		}
	}

	// Consecutive failures.
	threshold := pkg.AutoPauseFailures
	if threshold <= 0 {
		threshold = 5
	}
	if snap.ConsecutiveFailures >= threshold {
		raise(Indicator{
			Type:     "consecutive_failures",
			Detail:   fmt.Sprintf("%d consecutive failures (threshold %d)", snap.ConsecutiveFailures, threshold),
			Severity: SeverityCritical,
		})
	} else if snap.ConsecutiveFailures >= consecutiveWarnAt {
		raise(Indicator{
			Type:     "consecutive_failures",
			Detail:   fmt.Sprintf("%d consecutive failures", snap.ConsecutiveFailures),
			Severity: SeverityWarning,
		})
	}

	// Trailing success rate, gated on sample size.
	if snap.SentDay >= minSuccessRateSamples {
		if snap.SuccessRate24h < pkg.AutoPauseSuccessRate {
			raise(Indicator{
				Type:     "low_success_rate",
				Detail:   fmt.Sprintf("success rate %.1f%% (threshold %.1f%%)", snap.SuccessRate24h, pkg.AutoPauseSuccessRate),
				Severity: SeverityCritical,
			})
		} else if snap.SuccessRate24h < warnSuccessRate {
			raise(Indicator{
				Type:     "low_success_rate",
				Detail:   fmt.Sprintf("success rate %.1f%%", snap.SuccessRate24h),
				Severity: SeverityWarning,
			})
		}
	}

	// Provider error text.
	if matched := matchKeywords(snap.RecentErrors); len(matched) > 0 {
		raise(Indicator{
			Type:     "block_error_detected",
			Detail:   "block-related errors: " + strings.Join(matched, ", "),
			Severity: SeverityCritical,
		})
	}

	// Everything in the last half hour failed.
	if snap.Recent30MinTotal >= minRecentFailedWindow && snap.Recent30MinFailed == snap.Recent30MinTotal {
		raise(Indicator{
			Type:     "all_recent_failed",
			Detail:   fmt.Sprintf("all %d sends in the last 30 minutes failed", snap.Recent30MinTotal),
			Severity: SeverityCritical,
		})
	}

	return ev
}

// MatchesBlockKeyword reports whether one provider error text carries block
// evidence; the send path uses it to trigger an immediate check instead of
// waiting for the scheduled health pass.
func MatchesBlockKeyword(errText string) bool {
	return len(matchKeywords([]string{errText})) > 0
}

func matchKeywords(errs []string) []string {
	seen := map[string]bool{}
	var matched []string
	for _, e := range errs {
		lower := strings.ToLower(e)
		for _, kw := range blockKeywords {
			if strings.Contains(lower, kw) && !seen[kw] {
				seen[kw] = true
				matched = append(matched, kw)
			}
		}
	}
	return matched
}

// summary joins the first indicators into an operator-readable line.
func summary(inds []Indicator) string {
	n := len(inds)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, ind := range inds[:n] {
		parts = append(parts, ind.Detail)
	}
	return strings.Join(parts, "; ")
}
