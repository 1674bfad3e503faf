package domain

import "time"

// DelayType classifies how a stop is late.
type DelayType string

const (
	// DelayRetrospective: the stop was executed later than estimated.
	DelayRetrospective DelayType = "RETROSPECTIVE"
	// DelayPlannedTimeExceeded: the stop is still pending and its estimate has passed.
	DelayPlannedTimeExceeded DelayType = "PLANNED_TIME_EXCEEDED"
)

// DelayInfo annotates a late stop. It is derived on read and never stored.
type DelayInfo struct {
	Type       DelayType
	Minutes    int
	DetectedAt time.Time
}

// DelaySummary aggregates the delays of one route at an observation time.
type DelaySummary struct {
	MaxDelayMinutes  int
	DelayedStopCount int
	LastDetectedAt   *time.Time
}

// DetectDelay classifies a stop against its estimate as observed at now.
// A delay must exceed threshold to be reported; a zero threshold reports any
// positive lateness. Cancelled stops are never delayed, and an executed stop
// without an actual time has nothing to compare.
func DetectDelay(stop *Stop, now time.Time, threshold time.Duration) *DelayInfo {
	if stop == nil || stop.IsCancelled() {
		return nil
	}
	if threshold < 0 {
		threshold = 0
	}
	estimated := stop.EstimatedTime()

	if actual := stop.ActualTime(); actual != nil {
		late := actual.Sub(estimated)
		if late <= threshold {
			return nil
		}
		return &DelayInfo{
			Type:       DelayRetrospective,
			Minutes:    int(late / time.Minute),
			DetectedAt: actual.UTC(),
		}
	}

	if stop.IsExecuted() {
		return nil
	}

	late := now.Sub(estimated)
	if late <= threshold {
		return nil
	}
	return &DelayInfo{
		Type:       DelayPlannedTimeExceeded,
		Minutes:    int(late / time.Minute),
		DetectedAt: estimated.Add(threshold).UTC(),
	}
}

// SummarizeDelays folds DetectDelay over stops.
func SummarizeDelays(stops []*Stop, now time.Time, threshold time.Duration) DelaySummary {
	var summary DelaySummary
	for _, stop := range stops {
		info := DetectDelay(stop, now, threshold)
		if info == nil {
			continue
		}
		summary.DelayedStopCount++
		summary.MaxDelayMinutes = max(summary.MaxDelayMinutes, info.Minutes)
		if summary.LastDetectedAt == nil || info.DetectedAt.After(*summary.LastDetectedAt) {
			detected := info.DetectedAt
			summary.LastDetectedAt = &detected
		}
	}
	return summary
}
