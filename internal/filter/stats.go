package filter

import (
	"fmt"
	"sort"
	"strings"
)

// Rejection reasons. The reason counters are the authoritative statistic;
// the per-stage counters are a derived rollup.
const (
	ReasonTooShort       = "too_short"
	ReasonWrongLanguage  = "wrong_language"
	ReasonRepost         = "is_repost"
	ReasonTooOld         = "too_old"
	ReasonAlreadyReplied = "already_replied"
	ReasonAuthorLimit    = "author_daily_limit"
	ReasonLookupFailed   = "lookup_failed"
	ReasonBelowThreshold = "below_threshold"
	ReasonDailyLimit     = "daily_limit"
	ReasonGapTooShort    = "gap_too_short"
)

// Pipeline stages, used only for the rollup counters.
const (
	StageContent    = "content"
	StageDedup      = "dedup"
	StageAudience   = "audience"
	StageRateLimits = "rate_limits"
)

// Stats summarizes one cycle's filtering.
type Stats struct {
	Considered int
	SelectedID string // empty when no candidate survived
	Reasons    map[string]int
	Stages     map[string]int
}

func newStats() *Stats {
	return &Stats{
		Reasons: make(map[string]int),
		Stages:  make(map[string]int),
	}
}

func (s *Stats) reject(stage, reason string) {
	s.Stages[stage]++
	s.Reasons[reason]++
}

// String renders a compact single-line summary for cycle logs, with reasons
// in deterministic order.
func (s *Stats) String() string {
	reasons := make([]string, 0, len(s.Reasons))
	for reason := range s.Reasons {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	parts := make([]string, 0, len(reasons))
	for _, reason := range reasons {
		parts = append(parts, fmt.Sprintf("%s=%d", reason, s.Reasons[reason]))
	}

	selected := s.SelectedID
	if selected == "" {
		selected = "none"
	}
	if len(parts) == 0 {
		return fmt.Sprintf("considered=%d selected=%s", s.Considered, selected)
	}
	return fmt.Sprintf("considered=%d selected=%s rejected: %s",
		s.Considered, selected, strings.Join(parts, " "))
}
