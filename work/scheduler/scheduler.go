package scheduler

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tempest-engine/work/catalog"
	"tempest-engine/work/config"
	"tempest-engine/work/logger"
	"tempest-engine/work/metrics"
	"tempest-engine/work/types"

	"github.com/benbjohnson/clock"
	"github.com/maypok86/otter/v2"
	"github.com/panjf2000/ants/v2"
	"github.com/puzpuzpuz/xsync/v3"
)

// Typed failures surfaced by mutating engine operations. Read operations never
// return errors; absence is signalled with a boolean or an empty slice.
var (
	ErrChannelNotFound  = errors.New("channel not found")
	ErrItemNotFound     = errors.New("schedule item not found")
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrInvalidDuration  = errors.New("invalid duration")
)

// Engine owns the per-channel schedules: it generates them by packing catalog
// assets into contiguous time slots, caches per-day slices for guide queries,
// serves now/next lookups, applies explicit overrides, and regenerates the whole
// window on a timer.
//
// All mutation (regeneration, overrides, removals) is serialized through one
// mutex; readers work against immutable item slices swapped in atomically, so a
// guide query can never observe a half-built schedule.
type Engine struct {
	cfg     *config.Config
	library *catalog.Library
	clock   clock.Clock
	pool    *ants.Pool // bounded goroutine pool for per-channel generation fan-out

	schedules *xsync.MapOf[string, []*types.ScheduleItem]   // channel id -> sorted immutable item slice
	dayCache  *otter.Cache[string, []*types.ScheduleItem]   // "channel|YYYY-MM-DD" -> items touching that day

	genMu     sync.Mutex   // serializes all schedule mutation
	lastRegen atomic.Int64 // unix nanos of the most recent completed regeneration

	stopChan chan struct{}
	running  atomic.Bool
}

// New wires a scheduling engine against the catalog. The clock is injectable so
// tests can drive "now" without sleeping; production passes clock.New().
func New(cfg *config.Config, library *catalog.Library, pool *ants.Pool, clk clock.Clock) *Engine {
	return &Engine{
		cfg:       cfg,
		library:   library,
		clock:     clk,
		pool:      pool,
		schedules: xsync.NewMapOf[string, []*types.ScheduleItem](),
		dayCache: otter.Must(&otter.Options[string, []*types.ScheduleItem]{
			MaximumSize:      4096,
			ExpiryCalculator: otter.ExpiryWriting[string, []*types.ScheduleItem](cfg.CacheDuration),
		}),
		stopChan: make(chan struct{}),
	}
}

// GenerateChannelSchedule builds a fresh schedule for one channel starting at
// windowStart. A channel with no assigned assets gets placeholder programming
// over the shorter placeholder horizon; otherwise assets are packed into
// contiguous slots across the full schedule window using the time-of-day rules.
//
// The rng drives both candidate selection and content-kind labeling; passing a
// fixed-seed rng makes the output fully deterministic for a fixed catalog.
func (e *Engine) GenerateChannelSchedule(ch config.ChannelConfig, windowStart time.Time, rng *rand.Rand) []*types.ScheduleItem {
	assets := e.library.ChannelAssets(ch.ID)
	if len(assets) == 0 {
		return e.placeholderSchedule(ch, windowStart)
	}

	windowEnd := windowStart.AddDate(0, 0, e.cfg.ScheduleDays)
	items := make([]*types.ScheduleItem, 0, 256)

	current := windowStart
	for current.Before(windowEnd) {
		hour := current.Hour()
		candidates := candidatesForHour(assets, hour)
		if len(candidates) == 0 {
			// cannot happen while the channel has assets, but never spin on it
			current = current.Add(time.Hour)
			continue
		}

		asset := candidates[rng.Intn(len(candidates))]

		effective := asset.DurationSeconds
		if effective < minSlotSeconds {
			effective = minSlotSeconds
		}
		endTime := ceilToMinute(current.Add(time.Duration(effective) * time.Second))

		kind := classifyKind(hour, rng)
		items = append(items, &types.ScheduleItem{
			ID:          itemID(ch.ID, current, asset.ID),
			ChannelID:   ch.ID,
			AssetID:     asset.ID,
			Title:       asset.Title,
			Description: asset.Description,
			StartTime:   current,
			EndTime:     endTime,
			ContentKind: kind,
			Thumbnail:   asset.Thumbnail,
			IsLive:      kind == types.KindLive,
			Metadata: map[string]string{
				types.MetaOriginalDuration: fmt.Sprintf("%d", asset.DurationSeconds),
				types.MetaCategory:         asset.Category,
				types.MetaTags:             strings.Join(asset.Tags, ","),
			},
		})

		current = endTime
	}

	return items
}

// placeholderSchedule emits fixed two-hour filler blocks over the placeholder
// horizon. The horizon is deliberately shorter than the real-content window;
// guide consumers rely on the one-day placeholder boundary.
func (e *Engine) placeholderSchedule(ch config.ChannelConfig, windowStart time.Time) []*types.ScheduleItem {
	const blockHours = 2

	horizon := windowStart.Add(time.Duration(e.cfg.PlaceholderHours) * time.Hour)
	items := make([]*types.ScheduleItem, 0, e.cfg.PlaceholderHours/blockHours)

	for current := windowStart; current.Before(horizon); current = current.Add(blockHours * time.Hour) {
		end := current.Add(blockHours * time.Hour)
		items = append(items, &types.ScheduleItem{
			ID:          itemID(ch.ID, current, "placeholder"),
			ChannelID:   ch.ID,
			Title:       ch.Name + " Programming",
			Description: "Scheduled programming on " + ch.Name,
			StartTime:   current,
			EndTime:     end,
			ContentKind: types.KindVOD,
			Metadata: map[string]string{
				types.MetaPlaceholder: "true",
			},
		})
	}

	return items
}

// Regenerate rebuilds every channel's schedule from the current catalog and swaps
// the results in atomically, then rebuilds the per-day slice cache wholesale.
// Channels are generated concurrently through the worker pool. A channel whose
// generation panics keeps its previous schedule (fail-safe-stale over fail-empty).
func (e *Engine) Regenerate(trigger string) {
	e.genMu.Lock()
	defer e.genMu.Unlock()

	started := e.clock.Now()
	windowStart := started.UTC().Truncate(time.Hour)

	logger.Debug("{scheduler/scheduler - Regenerate} regenerating %d channels from %s (trigger: %s)",
		len(e.cfg.Channels), windowStart.Format(time.RFC3339), trigger)

	type result struct {
		channelID string
		items     []*types.ScheduleItem
	}

	results := make(chan result, len(e.cfg.Channels))
	var wg sync.WaitGroup

	for _, ch := range e.cfg.Channels {
		ch := ch
		wg.Add(1)
		task := func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("{scheduler/scheduler - Regenerate} generation panic for channel %s, keeping previous schedule: %v", ch.ID, r)
				}
			}()
			rng := e.channelRNG(ch.ID, windowStart)
			results <- result{channelID: ch.ID, items: e.GenerateChannelSchedule(ch, windowStart, rng)}
		}
		if err := e.pool.Submit(task); err != nil {
			// pool exhausted or released; generate inline rather than dropping the channel
			task()
		}
	}

	wg.Wait()
	close(results)

	generated := 0
	for res := range results {
		e.schedules.Store(res.channelID, res.items)
		generated += len(res.items)
	}

	e.rebuildDayCache(windowStart)
	e.lastRegen.Store(e.clock.Now().UnixNano())

	elapsed := e.clock.Now().Sub(started)
	metrics.Regenerations.WithLabelValues(trigger).Inc()
	metrics.RegenerationDuration.Observe(elapsed.Seconds())
	e.publishScheduleMetrics()

	logger.Info("{scheduler/scheduler - Regenerate} generated %d items across %d channels in %s (trigger: %s)",
		generated, len(e.cfg.Channels), elapsed, trigger)
}

// ForceRegenerate triggers an immediate full regeneration regardless of the
// hourly guard.
func (e *Engine) ForceRegenerate() {
	e.Regenerate("forced")
}

// channelRNG derives the randomness source for one channel's generation pass.
// With a configured seed the sequence depends only on the channel and the window
// start, so regeneration of the same window is reproducible; with seed 0 each
// window start re-seeds from itself.
func (e *Engine) channelRNG(channelID string, windowStart time.Time) *rand.Rand {
	seed := e.cfg.RandomSeed
	if seed == 0 {
		seed = windowStart.UnixNano()
	}
	h := fnv.New64a()
	h.Write([]byte(channelID))
	return rand.New(rand.NewSource(seed ^ int64(h.Sum64())))
}

// itemID derives the deterministic schedule item id, so regenerating the same
// window with the same picks yields identical ids.
func itemID(channelID string, start time.Time, assetID string) string {
	return fmt.Sprintf("%s-%d-%s", channelID, start.Unix(), assetID)
}

// --- cache ---

// dayKey builds the day-slice cache key for a channel and a calendar day (UTC).
func dayKey(channelID string, day time.Time) string {
	return channelID + "|" + day.UTC().Format("2006-01-02")
}

// rebuildDayCache drops the whole slice cache and rematerializes one entry per
// channel per calendar day of the window. No incremental updates: regeneration
// replaces everything.
func (e *Engine) rebuildDayCache(windowStart time.Time) {
	e.dayCache.InvalidateAll()

	for _, ch := range e.cfg.Channels {
		items, ok := e.schedules.Load(ch.ID)
		if !ok {
			continue
		}
		day := windowStart.UTC().Truncate(24 * time.Hour)
		for d := 0; d < e.cfg.ScheduleDays; d++ {
			dayStart := day.AddDate(0, 0, d)
			dayEnd := dayStart.AddDate(0, 0, 1)
			e.dayCache.Set(dayKey(ch.ID, dayStart), overlapping(items, dayStart, dayEnd))
		}
	}
}

// DaySchedule returns the channel's items touching the given calendar day (UTC),
// served from the slice cache when possible.
func (e *Engine) DaySchedule(channelID string, day time.Time) []*types.ScheduleItem {
	dayStart := day.UTC().Truncate(24 * time.Hour)

	if cached, ok := e.dayCache.GetIfPresent(dayKey(channelID, dayStart)); ok {
		return cached
	}

	items, ok := e.schedules.Load(channelID)
	if !ok {
		return nil
	}
	slice := overlapping(items, dayStart, dayStart.AddDate(0, 0, 1))
	e.dayCache.Set(dayKey(channelID, dayStart), slice)
	return slice
}

// --- lookups ---

// CurrentProgram returns the item airing on the channel right now, if any. The
// span is half-open: an item ending exactly now has finished airing.
func (e *Engine) CurrentProgram(channelID string) (*types.ScheduleItem, bool) {
	now := e.clock.Now()
	items, ok := e.schedules.Load(channelID)
	if !ok {
		return nil, false
	}
	for _, item := range items {
		if item.Airing(now) {
			return item, true
		}
		if item.StartTime.After(now) {
			break
		}
	}
	return nil, false
}

// NextProgram returns the earliest item starting after now, if any. An empty
// result means the generated window is exhausted and regeneration is imminent.
func (e *Engine) NextProgram(channelID string) (*types.ScheduleItem, bool) {
	now := e.clock.Now()
	items, ok := e.schedules.Load(channelID)
	if !ok {
		return nil, false
	}
	for _, item := range items {
		if item.StartTime.After(now) {
			return item, true
		}
	}
	return nil, false
}

// ChannelSchedule returns the channel's items overlapping [start, end), sorted by
// start time. Zero times leave that side unbounded. A window with end at or
// before start is rejected.
func (e *Engine) ChannelSchedule(channelID string, start, end time.Time) ([]*types.ScheduleItem, error) {
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return nil, fmt.Errorf("schedule window %s..%s: %w", start, end, ErrInvalidTimeRange)
	}

	items, ok := e.schedules.Load(channelID)
	if !ok {
		return []*types.ScheduleItem{}, nil
	}
	if start.IsZero() && end.IsZero() {
		return items, nil
	}

	lo, hi := start, end
	if lo.IsZero() {
		lo = time.Unix(0, 0)
	}
	if hi.IsZero() {
		hi = time.Unix(1<<62-1, 0)
	}
	return overlapping(items, lo, hi), nil
}

// AllChannelsSchedule returns every channel's items overlapping the window, keyed
// by channel id.
func (e *Engine) AllChannelsSchedule(start, end time.Time) (map[string][]*types.ScheduleItem, error) {
	out := make(map[string][]*types.ScheduleItem, len(e.cfg.Channels))
	for _, ch := range e.cfg.Channels {
		items, err := e.ChannelSchedule(ch.ID, start, end)
		if err != nil {
			return nil, err
		}
		out[ch.ID] = items
	}
	return out, nil
}

// SearchPrograms returns all scheduled items across all channels whose title or
// description contains the query, case-insensitively, sorted by start time
// ascending (channel id, then item id, break ties for determinism).
func (e *Engine) SearchPrograms(query string) []*types.ScheduleItem {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var matches []*types.ScheduleItem
	e.schedules.Range(func(_ string, items []*types.ScheduleItem) bool {
		for _, item := range items {
			if strings.Contains(strings.ToLower(item.Title), query) ||
				strings.Contains(strings.ToLower(item.Description), query) {
				matches = append(matches, item)
			}
		}
		return true
	})

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		if a.ChannelID != b.ChannelID {
			return a.ChannelID < b.ChannelID
		}
		return a.ID < b.ID
	})
	return matches
}

// Stats summarizes the in-memory schedule across every channel.
func (e *Engine) Stats() *types.ScheduleStats {
	stats := &types.ScheduleStats{
		PerChannelCounts:        make(map[string]int, len(e.cfg.Channels)),
		ContentKindDistribution: make(map[types.ContentKind]int, 4),
	}

	var totalMinutes float64
	e.schedules.Range(func(channelID string, items []*types.ScheduleItem) bool {
		stats.PerChannelCounts[channelID] = len(items)
		stats.TotalPrograms += len(items)
		for _, item := range items {
			totalMinutes += item.EndTime.Sub(item.StartTime).Minutes()
			stats.ContentKindDistribution[item.ContentKind]++
		}
		return true
	})

	if stats.TotalPrograms > 0 {
		stats.AverageProgramLengthMinutes = totalMinutes / float64(stats.TotalPrograms)
	}
	return stats
}

// --- overrides ---

// ScheduleAsset explicitly places an asset on a channel at startTime. Every
// existing item whose span overlaps the new one is evicted whole (a destructive
// replace, not a splice), the new item is inserted, and the list is re-sorted.
// A zero duration falls back to the asset's runtime with the usual slot floor.
//
// Calling it twice with identical arguments is idempotent: the second insert
// evicts the first and occupies the same span with the same id.
func (e *Engine) ScheduleAsset(channelID, assetID string, startTime time.Time, duration time.Duration) (*types.ScheduleItem, error) {
	if e.cfg.ChannelByID(channelID) == nil {
		return nil, fmt.Errorf("schedule on %q: %w", channelID, ErrChannelNotFound)
	}
	asset, ok := e.library.GetAsset(assetID)
	if !ok {
		return nil, fmt.Errorf("schedule %q: %w", assetID, catalog.ErrAssetNotFound)
	}
	if duration < 0 {
		return nil, fmt.Errorf("schedule %q: %w", assetID, ErrInvalidDuration)
	}

	if duration == 0 {
		seconds := asset.DurationSeconds
		if seconds < minSlotSeconds {
			seconds = minSlotSeconds
		}
		duration = time.Duration(seconds) * time.Second
	}
	endTime := startTime.Add(duration)
	if !endTime.After(startTime) {
		return nil, fmt.Errorf("schedule %q: %w", assetID, ErrInvalidTimeRange)
	}

	item := &types.ScheduleItem{
		ID:          itemID(channelID, startTime, assetID),
		ChannelID:   channelID,
		AssetID:     assetID,
		Title:       asset.Title,
		Description: asset.Description,
		StartTime:   startTime,
		EndTime:     endTime,
		ContentKind: types.KindVOD,
		Thumbnail:   asset.Thumbnail,
		Metadata: map[string]string{
			types.MetaOriginalDuration: fmt.Sprintf("%d", asset.DurationSeconds),
			types.MetaCategory:         asset.Category,
			types.MetaTags:             strings.Join(asset.Tags, ","),
			types.MetaScheduled:        "true",
		},
	}

	e.genMu.Lock()
	defer e.genMu.Unlock()

	existing, _ := e.schedules.Load(channelID)
	kept := make([]*types.ScheduleItem, 0, len(existing)+1)
	evicted := 0
	for _, it := range existing {
		if it.Overlaps(startTime, endTime) {
			evicted++
			continue
		}
		kept = append(kept, it)
	}
	kept = append(kept, item)
	sort.Slice(kept, func(i, j int) bool { return kept[i].StartTime.Before(kept[j].StartTime) })

	e.schedules.Store(channelID, kept)
	e.invalidateChannelDays(channelID, startTime, endTime)

	metrics.ScheduleOverrides.WithLabelValues("insert").Inc()
	logger.Info("{scheduler/scheduler - ScheduleAsset} placed %s on %s at %s (evicted %d overlapping)",
		assetID, channelID, startTime.Format(time.RFC3339), evicted)
	return item, nil
}

// RemoveScheduledItem removes one item from a channel's schedule by id. Removal
// is structural: the item is filtered out, no soft-delete.
func (e *Engine) RemoveScheduledItem(channelID, scheduleItemID string) error {
	e.genMu.Lock()
	defer e.genMu.Unlock()

	existing, ok := e.schedules.Load(channelID)
	if !ok {
		return fmt.Errorf("remove from %q: %w", channelID, ErrChannelNotFound)
	}

	kept := make([]*types.ScheduleItem, 0, len(existing))
	var removed *types.ScheduleItem
	for _, it := range existing {
		if it.ID == scheduleItemID {
			removed = it
			continue
		}
		kept = append(kept, it)
	}
	if removed == nil {
		return fmt.Errorf("remove %q: %w", scheduleItemID, ErrItemNotFound)
	}

	e.schedules.Store(channelID, kept)
	e.invalidateChannelDays(channelID, removed.StartTime, removed.EndTime)

	metrics.ScheduleOverrides.WithLabelValues("remove").Inc()
	return nil
}

// invalidateChannelDays drops the cached day slices a mutation touched.
func (e *Engine) invalidateChannelDays(channelID string, start, end time.Time) {
	day := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Truncate(24 * time.Hour)
	for !day.After(last) {
		e.dayCache.Invalidate(dayKey(channelID, day))
		day = day.AddDate(0, 0, 1)
	}
}

// --- background refresh ---

// Start launches the background refresh loop: a cheap per-tick scan that keeps
// current-program state warm, plus a guard that triggers full regeneration once
// the configured interval has elapsed or any channel has run out of schedule.
// Start is idempotent.
func (e *Engine) Start() {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	go e.runLoop()
}

// Stop signals the refresh loop to exit. An in-flight regeneration finishes;
// generation is CPU-bound and fast relative to its cadence, so there is no
// mid-generation cancellation.
func (e *Engine) Stop() {
	if e.running.CompareAndSwap(true, false) {
		close(e.stopChan)
	}
}

func (e *Engine) runLoop() {
	ticker := e.clock.Ticker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopChan:
			logger.Debug("{scheduler/scheduler - runLoop} refresh loop stopped")
			return
		case <-ticker.C:
			e.refreshTick()
		}
	}
}

// refreshTick is the cheap per-minute pass: scan for channels whose window is
// exhausted and decide whether the hourly regeneration is due. No I/O happens
// here; catalog syncing runs on its own cadence.
func (e *Engine) refreshTick() {
	now := e.clock.Now()

	exhausted := 0
	for _, ch := range e.cfg.Channels {
		if _, ok := e.CurrentProgram(ch.ID); ok {
			continue
		}
		if _, ok := e.NextProgram(ch.ID); !ok {
			exhausted++
		}
	}

	due := now.Sub(time.Unix(0, e.lastRegen.Load())) >= e.cfg.RegenerateInterval
	if exhausted > 0 || due {
		logger.Debug("{scheduler/scheduler - refreshTick} regeneration needed (exhausted: %d, interval due: %v)", exhausted, due)
		e.Regenerate("timer")
	}
}

// publishScheduleMetrics refreshes the per-channel schedule gauges. Caller holds
// genMu.
func (e *Engine) publishScheduleMetrics() {
	for _, ch := range e.cfg.Channels {
		items, _ := e.schedules.Load(ch.ID)
		real, filler := 0, 0
		for _, item := range items {
			if item.IsPlaceholder() {
				filler++
			} else {
				real++
			}
		}
		metrics.ScheduleItems.WithLabelValues(ch.ID, "false").Set(float64(real))
		metrics.ScheduleItems.WithLabelValues(ch.ID, "true").Set(float64(filler))
	}
}

// overlapping returns the items whose span intersects [start, end). Items
// partially overlapping the edges are included whole.
func overlapping(items []*types.ScheduleItem, start, end time.Time) []*types.ScheduleItem {
	out := make([]*types.ScheduleItem, 0, len(items))
	for _, item := range items {
		if item.Overlaps(start, end) {
			out = append(out, item)
		}
	}
	return out
}
