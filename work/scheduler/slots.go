package scheduler

import (
	"math/rand"
	"time"

	"tempest-engine/work/types"

	"github.com/grafana/regexp"
)

// Content heuristics regexes - matched against an asset's title, description,
// category and tags when picking candidates for a time slot.
var (
	educationalRegex = regexp.MustCompile(`(?i)(lecture|tutorial|education|learning|course|how-to)`)
	relaxingRegex    = regexp.MustCompile(`(?i)(relaxing|meditation|ambient|peaceful|calm|sleep|nature)`)
)

// minSlotSeconds is the floor applied to every generated slot. Short clips still
// occupy a 30-minute block so the guide grid never degenerates into micro-slots.
const minSlotSeconds = 30 * 60

// Daypart duration bounds, in seconds.
const (
	morningMaxSeconds   = 45 * 60 // morning slots favor short educational content
	afternoonMaxSeconds = 90 * 60
	eveningMinSeconds   = 30 * 60
	lateNightMinSeconds = 60 * 60 // long content qualifies for overnight even if not "relaxing"
)

// candidatesForHour applies the time-of-day suitability rules to the channel's
// asset pool:
//
//	morning    (06-12): educational content no longer than 45 minutes
//	afternoon  (12-18): anything up to 90 minutes
//	evening    (18-22): anything at least 30 minutes
//	late night (22-06): relaxing content, or anything at least an hour long
//
// When the filter leaves nothing, the full pool is returned instead: a channel
// with any asset at all never stalls on an unsuitable hour.
func candidatesForHour(assets []*types.VideoAsset, hour int) []*types.VideoAsset {
	var filtered []*types.VideoAsset

	switch {
	case hour >= 6 && hour < 12:
		for _, a := range assets {
			if a.DurationSeconds <= morningMaxSeconds && educationalRegex.MatchString(a.SearchText()) {
				filtered = append(filtered, a)
			}
		}
	case hour >= 12 && hour < 18:
		for _, a := range assets {
			if a.DurationSeconds <= afternoonMaxSeconds {
				filtered = append(filtered, a)
			}
		}
	case hour >= 18 && hour < 22:
		for _, a := range assets {
			if a.DurationSeconds >= eveningMinSeconds {
				filtered = append(filtered, a)
			}
		}
	default: // 22:00 - 06:00
		for _, a := range assets {
			if a.DurationSeconds >= lateNightMinSeconds || relaxingRegex.MatchString(a.SearchText()) {
				filtered = append(filtered, a)
			}
		}
	}

	if len(filtered) == 0 {
		return assets
	}
	return filtered
}

// classifyKind assigns the decorative content-kind label for a slot starting at
// the given hour. Prime viewing hours get an occasional "live" flavor, late
// evenings an occasional "premiere", and the small hours are always reruns.
func classifyKind(hour int, rng *rand.Rand) types.ContentKind {
	switch {
	case (hour >= 8 && hour <= 10) || (hour >= 19 && hour <= 21):
		if rng.Float64() < 0.30 {
			return types.KindLive
		}
		return types.KindVOD
	case hour >= 20 && hour <= 22:
		if rng.Float64() < 0.20 {
			return types.KindPremiere
		}
		return types.KindVOD
	case hour >= 0 && hour <= 6:
		return types.KindRerun
	default:
		return types.KindVOD
	}
}

// ceilToMinute rounds t up to the next whole minute, leaving it unchanged when it
// already sits on a minute boundary.
func ceilToMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}
