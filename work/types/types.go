package types

import (
	"time"
)

// ContentKind classifies the flavor of a scheduled program slot. The labels are
// decorative scheduling metadata (a "premiere" slot does not provision an actual
// live stream); downstream guide renderers use them for badges and styling only.
type ContentKind string

// Content kind constants define the closed set of slot flavors the scheduler
// can assign. IsLive on a ScheduleItem is true only for KindLive.
const (
	KindLive     ContentKind = "live"     // Presented as a live broadcast slot
	KindVOD      ContentKind = "vod"      // Standard video-on-demand programming
	KindPremiere ContentKind = "premiere" // First-airing presentation of an asset
	KindRerun    ContentKind = "rerun"    // Repeat programming, typical of overnight hours
)

// Valid reports whether k is one of the closed set of content kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindLive, KindVOD, KindPremiere, KindRerun:
		return true
	}
	return false
}

// VideoAsset represents a single entry in the video catalog: one externally hosted
// piece of media plus the metadata the scheduler needs to place it into a channel's
// feed. Assets are keyed by ID and belong to at most one channel at a time;
// reassignment removes the asset from its prior channel's list.
//
// DurationSeconds of zero means the duration is unknown; the scheduler applies its
// slot floor in that case rather than rejecting the asset.
type VideoAsset struct {
	ID              string            `json:"id"`                     // Unique asset identifier across the whole catalog
	Title           string            `json:"title"`                  // Display title
	Description     string            `json:"description"`            // Display description
	SourceReference string            `json:"sourceReference"`        // Opaque handle to the hosted media (e.g. a stream provider video id)
	Thumbnail       string            `json:"thumbnail"`              // Thumbnail image path or URL
	DurationSeconds int               `json:"durationSeconds"`        // Runtime in seconds; 0 = unknown
	Category        string            `json:"category"`               // Free-text classification from the content source
	Tags            []string          `json:"tags"`                   // Keyword tags used for channel assignment and search
	UploadedAt      time.Time         `json:"uploadedAt"`             // Upload timestamp, used for recency ordering
	LastSyncedAt    time.Time         `json:"lastSyncedAt,omitempty"` // When this record was last refreshed from the source
	Metadata        map[string]string `json:"metadata,omitempty"`     // Open key/value bag carried through from the source
}

// SearchText returns the searchable surface of the asset: title,
// description, category and tags joined together. Classification and search both
// match against this single string.
func (a *VideoAsset) SearchText() string {
	text := a.Title + " " + a.Description + " " + a.Category
	for _, tag := range a.Tags {
		text += " " + tag
	}
	return text
}

// Channel describes one continuously scheduled programming stream. Channels are
// static reference data defined in configuration; the engine reads them but never
// mutates them.
type Channel struct {
	ID        string `json:"id"`        // Stable channel identifier used in schedule and API keys
	Name      string `json:"name"`      // Human-readable channel name
	Category  string `json:"category"`  // Editorial grouping (e.g. "education", "wellness")
	Color     string `json:"color"`     // Brand accent color for guide rendering
	SortOrder int    `json:"sortOrder"` // Position in the guide grid, ascending
}

// ScheduleItem is one scheduled occupancy of a time span on a channel, optionally
// backed by a catalog asset. Items are ephemeral: they are produced in bulk by
// schedule generation, may be individually replaced by explicit overrides, and are
// discarded wholesale on every regeneration.
//
// Invariants maintained by the scheduler for any channel's item list:
//   - no two items overlap
//   - items are sorted ascending by StartTime
//   - EndTime is strictly after StartTime
//
// The [StartTime, EndTime) span is half-open: a program whose EndTime equals the
// current instant is no longer playing.
type ScheduleItem struct {
	ID          string            `json:"id"`                // Deterministic id derived from channel, start time and asset
	ChannelID   string            `json:"channelId"`         // Owning channel
	AssetID     string            `json:"assetId,omitempty"` // Backing asset; empty for placeholder/filler slots
	Title       string            `json:"title"`             // Display title, copied from the asset or synthesized
	Description string            `json:"description"`       // Display description
	StartTime   time.Time         `json:"startTime"`         // Inclusive slot start
	EndTime     time.Time         `json:"endTime"`           // Exclusive slot end; always after StartTime
	ContentKind ContentKind       `json:"contentKind"`       // Slot flavor label
	Thumbnail   string            `json:"thumbnail"`         // Thumbnail copied from the asset
	IsLive      bool              `json:"isLive"`            // True only when ContentKind == KindLive
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Metadata keys recorded on generated schedule items.
const (
	MetaOriginalDuration = "originalDurationSeconds" // Asset runtime before the slot floor was applied
	MetaCategory         = "category"                // Asset category at generation time
	MetaTags             = "tags"                    // Comma-joined asset tags at generation time
	MetaPlaceholder      = "isPlaceholder"           // "true" on filler items for empty channels
	MetaScheduled        = "scheduled"               // "true" on items inserted by an explicit override
)

// Overlaps reports whether the item's span intersects the half-open window
// [start, end).
func (si *ScheduleItem) Overlaps(start, end time.Time) bool {
	return si.StartTime.Before(end) && si.EndTime.After(start)
}

// Airing reports whether the item is playing at instant t. The end boundary is
// exclusive: an item ending exactly at t is not airing.
func (si *ScheduleItem) Airing(t time.Time) bool {
	return !si.StartTime.After(t) && si.EndTime.After(t)
}

// IsPlaceholder reports whether the item is generated filler for a channel with
// no assigned assets.
func (si *ScheduleItem) IsPlaceholder() bool {
	return si.Metadata[MetaPlaceholder] == "true"
}

// GuideData is the assembled EPG window handed to guide renderers: the slot
// boundary grid, the static channel list, and each channel's programs overlapping
// the window. Programs partially overlapping the window edges are included whole;
// visual clipping is the renderer's concern.
type GuideData struct {
	TimeSlots         []time.Time                `json:"timeSlots"`
	Channels          []Channel                  `json:"channels"`
	ProgramsByChannel map[string][]*ScheduleItem `json:"programsByChannel"`
}

// ScheduleStats summarizes the engine's current in-memory schedule across all
// channels, primarily for the admin surface and operational monitoring.
type ScheduleStats struct {
	TotalPrograms               int                 `json:"totalPrograms"`
	PerChannelCounts            map[string]int      `json:"perChannelCounts"`
	AverageProgramLengthMinutes float64             `json:"averageProgramLengthMinutes"`
	ContentKindDistribution     map[ContentKind]int `json:"contentKindDistribution"`
}
