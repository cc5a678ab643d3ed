package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoFeatures indicates the query produced zero usable features. This
// always fails the run: an empty artifact would clobber good data after a
// partial or errored Overpass response.
var ErrNoFeatures = errors.New("query returned zero usable features")

// DropError indicates the new feature count fell too far below the previous
// committed count, usually a sign of a truncated Overpass response.
type DropError struct {
	Previous  int
	New       int
	Percent   float64
	Threshold int
}

func (e *DropError) Error() string {
	return fmt.Sprintf(
		"feature count dropped from %d to %d (%.1f%% reduction, threshold %d%%); keeping previous artifact",
		e.Previous, e.New, e.Percent, e.Threshold,
	)
}

// CheckFeatureCount validates the new feature count against the previous one.
// Zero new features always fail. With a previous count, a reduction strictly
// greater than threshold percent fails; a drop exactly at the threshold
// passes. previous <= 0 skips the drop check so first runs can seed the
// artifact.
func CheckFeatureCount(newCount, previous, threshold int) error {
	if newCount == 0 {
		return ErrNoFeatures
	}
	if previous <= 0 {
		return nil
	}
	dropPct := float64(previous-newCount) / float64(previous) * 100
	if dropPct > float64(threshold) {
		return &DropError{
			Previous:  previous,
			New:       newCount,
			Percent:   dropPct,
			Threshold: threshold,
		}
	}
	return nil
}

// RunSummary describes a successful artifact replacement. It is the payload
// of the optional dataset-update notification.
type RunSummary struct {
	Artifact      string    `json:"artifact"`
	FeatureCount  int       `json:"feature_count"`
	PreviousCount int       `json:"previous_count"`
	SkippedCount  int       `json:"skipped_count,omitempty"`
	DataTimestamp string    `json:"data_timestamp,omitempty"`
	GeneratedAt   time.Time `json:"generated_at"`
}
