// Package guide is the read-side EPG surface: thin helpers over the scheduling
// engine that shape results for guide grids and now-playing widgets. It holds no
// state of its own.
package guide

import (
	"time"

	"tempest-engine/work/config"
	"tempest-engine/work/scheduler"
	"tempest-engine/work/types"

	"github.com/benbjohnson/clock"
)

// DefaultWindowHours is the guide window length used when the caller does not
// ask for a specific span.
const DefaultWindowHours = 4

// Service wraps the engine with guide-shaped queries. Every operation is a total
// function over possibly-empty results; nothing here errors on missing data.
type Service struct {
	cfg    *config.Config
	engine *scheduler.Engine
	clock  clock.Clock
}

// NewService builds the guide read surface over the engine.
func NewService(cfg *config.Config, engine *scheduler.Engine, clk clock.Clock) *Service {
	return &Service{cfg: cfg, engine: engine, clock: clk}
}

// CurrentProgram returns what is airing on the channel right now, if anything.
func (s *Service) CurrentProgram(channelID string) (*types.ScheduleItem, bool) {
	return s.engine.CurrentProgram(channelID)
}

// NextProgram returns the channel's next upcoming item, if any.
func (s *Service) NextProgram(channelID string) (*types.ScheduleItem, bool) {
	return s.engine.NextProgram(channelID)
}

// ChannelSchedule returns the channel's items overlapping [start, end), both
// optional (zero = unbounded).
func (s *Service) ChannelSchedule(channelID string, start, end time.Time) ([]*types.ScheduleItem, error) {
	return s.engine.ChannelSchedule(channelID, start, end)
}

// AllChannelsSchedule returns every channel's items in the window, keyed by
// channel id.
func (s *Service) AllChannelsSchedule(start, end time.Time) (map[string][]*types.ScheduleItem, error) {
	return s.engine.AllChannelsSchedule(start, end)
}

// DaySchedule returns the channel's items for one calendar day, served from the
// engine's day-slice cache.
func (s *Service) DaySchedule(channelID string, day time.Time) []*types.ScheduleItem {
	return s.engine.DaySchedule(channelID, day)
}

// SearchPrograms finds scheduled items whose title or description contains the
// query, across all channels, ordered by start time ascending.
func (s *Service) SearchPrograms(query string) []*types.ScheduleItem {
	return s.engine.SearchPrograms(query)
}

// Stats summarizes the engine's current schedules.
func (s *Service) Stats() *types.ScheduleStats {
	return s.engine.Stats()
}

// Channels returns the static lineup in guide grid order.
func (s *Service) Channels() []types.Channel {
	ordered := s.cfg.ChannelsBySortOrder()
	channels := make([]types.Channel, 0, len(ordered))
	for _, ch := range ordered {
		channels = append(channels, types.Channel{
			ID:        ch.ID,
			Name:      ch.Name,
			Category:  ch.Category,
			Color:     ch.Color,
			SortOrder: ch.SortOrder,
		})
	}
	return channels
}

// GuideData assembles the full EPG window: slot boundaries at the configured
// granularity, the channel lineup, and each channel's programs overlapping the
// window. A zero start defaults to now (snapped down to a slot boundary) and a
// non-positive hours count to DefaultWindowHours. Programs partially overlapping
// the window edges are included whole; clipping is the renderer's concern.
func (s *Service) GuideData(start time.Time, hours int) (*types.GuideData, error) {
	slot := time.Duration(s.cfg.SlotMinutes) * time.Minute
	if start.IsZero() {
		start = s.clock.Now().UTC()
	}
	start = start.Truncate(slot)
	if hours <= 0 {
		hours = DefaultWindowHours
	}
	end := start.Add(time.Duration(hours) * time.Hour)

	var slots []time.Time
	for t := start; t.Before(end); t = t.Add(slot) {
		slots = append(slots, t)
	}

	programs, err := s.engine.AllChannelsSchedule(start, end)
	if err != nil {
		return nil, err
	}

	return &types.GuideData{
		TimeSlots:         slots,
		Channels:          s.Channels(),
		ProgramsByChannel: programs,
	}, nil
}
