package monitor

import (
	"fmt"

	"github.com/scanledger/scanledger/constants"
)

// Insight thresholds over the finished-session window.
const (
	lowSuccessRate   = 0.70
	lowAvgConfidence = 0.55
	minSampleSize    = 5
)

// Insights derives qualitative observations from the rolling session
// window. Returned strings are operator-facing.
func (m *Monitor) Insights() []string {
	sessions := m.FinishedSessions()
	if len(sessions) < minSampleSize {
		return nil
	}

	var succeeded int
	var confSum float64
	for _, s := range sessions {
		if s.Status == constants.SessionSuccess {
			succeeded++
		}
		confSum += s.Confidence
	}
	rate := float64(succeeded) / float64(len(sessions))
	avgConf := confSum / float64(len(sessions))

	var out []string
	if rate < lowSuccessRate {
		out = append(out, fmt.Sprintf(
			"success rate %.0f%% is below %.0f%%: inspect input quality and error log",
			rate*100, lowSuccessRate*100))
	}
	if avgConf < lowAvgConfidence {
		out = append(out, fmt.Sprintf(
			"average confidence %.2f is low: many records will need manual review",
			avgConf))
	}
	if len(out) == 0 {
		out = append(out, fmt.Sprintf(
			"healthy: %d sessions, %.0f%% success, avg confidence %.2f",
			len(sessions), rate*100, avgConf))
	}
	return out
}
