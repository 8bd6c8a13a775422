package guide

import (
	"testing"
	"time"

	"tempest-engine/work/catalog"
	"tempest-engine/work/config"
	"tempest-engine/work/scheduler"
	"tempest-engine/work/types"

	"github.com/benbjohnson/clock"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *clock.Mock) {
	t.Helper()

	cfg := &config.Config{
		ScheduleDays:       7,
		PlaceholderHours:   24,
		SlotMinutes:        30,
		RefreshInterval:    time.Minute,
		RegenerateInterval: time.Hour,
		CacheDuration:      30 * time.Minute,
		RandomSeed:         42,
		Channels:           config.DefaultChannels(),
		DefaultChannelID:   "campus-pulse",
	}

	library := catalog.New(cfg, nil, nil)
	library.AddAsset(&types.VideoAsset{
		ID:              "lec1",
		Title:           "Morning Lecture",
		DurationSeconds: 45 * 60,
		Tags:            []string{"lecture"},
	}, "mind-feed")

	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)

	mock := clock.NewMock()
	mock.Set(t0)

	engine := scheduler.New(cfg, library, pool, mock)
	engine.Regenerate("test")

	return NewService(cfg, engine, mock), mock
}

func TestChannelsInGuideOrder(t *testing.T) {
	s, _ := newTestService(t)

	channels := s.Channels()
	require.Len(t, channels, 6)
	assert.Equal(t, "campus-pulse", channels[0].ID)
	assert.Equal(t, "mind-feed", channels[1].ID)
	for i := 1; i < len(channels); i++ {
		assert.Less(t, channels[i-1].SortOrder, channels[i].SortOrder)
	}
}

func TestGuideDataDefaults(t *testing.T) {
	s, mock := newTestService(t)
	mock.Set(t0.Add(14*time.Hour + 17*time.Minute))

	data, err := s.GuideData(time.Time{}, 0)
	require.NoError(t, err)

	// zero start snaps "now" down to the nearest half-hour slot
	require.NotEmpty(t, data.TimeSlots)
	assert.True(t, data.TimeSlots[0].Equal(t0.Add(14*time.Hour)))

	// four-hour default window at 30-minute granularity
	assert.Len(t, data.TimeSlots, 8)
	for i := 1; i < len(data.TimeSlots); i++ {
		assert.Equal(t, 30*time.Minute, data.TimeSlots[i].Sub(data.TimeSlots[i-1]))
	}

	assert.Len(t, data.Channels, 6)
	require.Contains(t, data.ProgramsByChannel, "mind-feed")
	assert.NotEmpty(t, data.ProgramsByChannel["mind-feed"])
}

func TestGuideDataExplicitWindow(t *testing.T) {
	s, _ := newTestService(t)

	start := t0.Add(9 * time.Hour)
	data, err := s.GuideData(start, 2)
	require.NoError(t, err)

	require.Len(t, data.TimeSlots, 4)
	assert.True(t, data.TimeSlots[0].Equal(start))

	// every returned program overlaps the requested window
	end := start.Add(2 * time.Hour)
	for channelID, items := range data.ProgramsByChannel {
		for _, item := range items {
			assert.True(t, item.StartTime.Before(end), "channel %s", channelID)
			assert.True(t, item.EndTime.After(start), "channel %s", channelID)
		}
	}
}

func TestGuideDataIncludesPlaceholderChannels(t *testing.T) {
	s, _ := newTestService(t)

	data, err := s.GuideData(t0, 2)
	require.NoError(t, err)

	// channels with no catalog assets still show filler programming
	require.Contains(t, data.ProgramsByChannel, "campus-pulse")
	items := data.ProgramsByChannel["campus-pulse"]
	require.NotEmpty(t, items)
	assert.True(t, items[0].IsPlaceholder())
}

func TestCurrentAndNextDelegation(t *testing.T) {
	s, mock := newTestService(t)
	mock.Set(t0.Add(10 * time.Minute))

	current, ok := s.CurrentProgram("mind-feed")
	require.True(t, ok)
	assert.True(t, current.Airing(mock.Now()))

	next, ok := s.NextProgram("mind-feed")
	require.True(t, ok)
	assert.True(t, next.StartTime.After(mock.Now()))
	assert.True(t, current.EndTime.Equal(next.StartTime))
}

func TestDayScheduleBoundedToDay(t *testing.T) {
	s, _ := newTestService(t)

	items := s.DaySchedule("mind-feed", t0.Add(5*time.Hour))
	require.NotEmpty(t, items)

	dayEnd := t0.AddDate(0, 0, 1)
	for _, item := range items {
		assert.True(t, item.StartTime.Before(dayEnd))
		assert.True(t, item.EndTime.After(t0))
	}
}

func TestSearchProgramsDelegation(t *testing.T) {
	s, _ := newTestService(t)

	results := s.SearchPrograms("morning lecture")
	require.NotEmpty(t, results)
	for _, item := range results {
		assert.Equal(t, "mind-feed", item.ChannelID)
	}

	stats := s.Stats()
	assert.Positive(t, stats.TotalPrograms)
	assert.Positive(t, stats.PerChannelCounts["mind-feed"])
}
