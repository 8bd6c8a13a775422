package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"tempest-engine/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAsset(id, title string, minutes int, tags ...string) *types.VideoAsset {
	return &types.VideoAsset{ID: id, Title: title, DurationSeconds: minutes * 60, Tags: tags}
}

func ids(assets []*types.VideoAsset) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.ID
	}
	return out
}

func TestCandidatesMorning(t *testing.T) {
	pool := []*types.VideoAsset{
		slotAsset("short-edu", "Quick Tutorial", 20),
		slotAsset("long-edu", "Full Lecture", 60),
		slotAsset("short-other", "Travel Vlog", 20),
	}

	// only short educational content survives the morning filter
	got := candidatesForHour(pool, 9)
	assert.Equal(t, []string{"short-edu"}, ids(got))
}

func TestCandidatesAfternoon(t *testing.T) {
	pool := []*types.VideoAsset{
		slotAsset("short", "Anything", 20),
		slotAsset("medium", "Documentary", 90),
		slotAsset("long", "Marathon", 120),
	}

	got := candidatesForHour(pool, 14)
	assert.Equal(t, []string{"short", "medium"}, ids(got))
}

func TestCandidatesEvening(t *testing.T) {
	pool := []*types.VideoAsset{
		slotAsset("clip", "Short Clip", 10),
		slotAsset("show", "Evening Show", 45),
	}

	got := candidatesForHour(pool, 19)
	assert.Equal(t, []string{"show"}, ids(got))
}

func TestCandidatesLateNight(t *testing.T) {
	pool := []*types.VideoAsset{
		slotAsset("calm", "Ocean Sounds", 15, "relaxing"),
		slotAsset("long", "Night Marathon", 90),
		slotAsset("short-loud", "Action Recap", 20),
	}

	// relaxing content qualifies regardless of length; long content regardless of tone
	got := candidatesForHour(pool, 23)
	assert.Equal(t, []string{"calm", "long"}, ids(got))

	got = candidatesForHour(pool, 3)
	assert.Equal(t, []string{"calm", "long"}, ids(got))
}

func TestCandidatesFallbackToFullPool(t *testing.T) {
	// nothing here is educational, so the morning filter comes up empty
	pool := []*types.VideoAsset{
		slotAsset("a", "Travel Vlog", 20),
		slotAsset("b", "City Walk", 25),
	}

	got := candidatesForHour(pool, 8)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestClassifyKindOvernightAlwaysRerun(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for hour := 0; hour <= 6; hour++ {
		assert.Equal(t, types.KindRerun, classifyKind(hour, rng), "hour %d", hour)
	}
}

func TestClassifyKindPrimeHoursMixLiveAndVOD(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	counts := map[types.ContentKind]int{}
	for i := 0; i < 1000; i++ {
		counts[classifyKind(9, rng)]++
	}

	assert.Positive(t, counts[types.KindLive])
	assert.Positive(t, counts[types.KindVOD])
	assert.Zero(t, counts[types.KindPremiere])
	assert.Zero(t, counts[types.KindRerun])
	// roughly a 30% live share
	assert.InDelta(t, 300, counts[types.KindLive], 100)
}

func TestClassifyKindLateEveningMixesPremiere(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	counts := map[types.ContentKind]int{}
	for i := 0; i < 1000; i++ {
		counts[classifyKind(22, rng)]++
	}

	assert.Positive(t, counts[types.KindPremiere])
	assert.Positive(t, counts[types.KindVOD])
	assert.Zero(t, counts[types.KindLive])
}

func TestClassifyKindQuietHoursAreVOD(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, hour := range []int{7, 12, 15, 18} {
		assert.Equal(t, types.KindVOD, classifyKind(hour, rng), "hour %d", hour)
	}
}

func TestCeilToMinute(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC)

	assert.Equal(t, base, ceilToMinute(base))
	assert.Equal(t, base.Add(time.Minute), ceilToMinute(base.Add(time.Second)))
	assert.Equal(t, base.Add(time.Minute), ceilToMinute(base.Add(59*time.Second)))
	assert.Equal(t, base.Add(time.Minute), ceilToMinute(base.Add(time.Nanosecond)))
}
