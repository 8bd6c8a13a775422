package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Config holds all application configuration values for the Tempest scheduling
// engine. It covers the HTTP surface, the external asset source connection, the
// warm-cache snapshot store, scheduler cadence knobs, and the static channel lineup.
type Config struct {
	BaseURL            string          `json:"baseURL"`            // Base URL for the application (used for links in API payloads)
	ListenPort         int             `json:"listenPort"`         // TCP port the HTTP server binds to
	SourceURL          string          `json:"sourceURL"`          // Bulk-fetch endpoint of the external asset source
	SourceTimeout      time.Duration   `json:"sourceTimeout"`      // Per-request timeout against the asset source
	SourceRateLimit    int             `json:"sourceRateLimit"`    // Max requests per second against the asset source
	UserAgent          string          `json:"userAgent"`          // HTTP User-Agent header for source requests
	SnapshotPath       string          `json:"snapshotPath"`       // SQLite file used as a cold-start warm cache for the catalog
	ScheduleDays       int             `json:"scheduleDays"`       // Rolling schedule window length in days
	PlaceholderHours   int             `json:"placeholderHours"`   // Placeholder schedule horizon in hours for empty channels
	SlotMinutes        int             `json:"slotMinutes"`        // Guide grid granularity in minutes
	RefreshInterval    time.Duration   `json:"refreshInterval"`    // Cadence of the cheap current-program refresh tick
	RegenerateInterval time.Duration   `json:"regenerateInterval"` // Minimum time between full schedule regenerations
	CacheDuration      time.Duration   `json:"cacheDuration"`      // TTL for cached per-day schedule slices
	SyncInterval       time.Duration   `json:"syncInterval"`       // Cadence of catalog re-syncs against the asset source
	WorkerThreads      int             `json:"workerThreads"`      // Worker pool size for per-channel generation fan-out
	RandomSeed         int64           `json:"randomSeed"`         // Seed for schedule randomness; 0 = seed from the clock
	Debug              bool            `json:"debug"`              // Enable debug logging
	LogLevel           string          `json:"logLevel"`           // Minimum log level: DEBUG, INFO, WARN, ERROR
	Channels           []ChannelConfig `json:"channels"`           // Static channel lineup, listed in classification priority order
	DefaultChannelID   string          `json:"defaultChannelId"`   // Fallback channel for assets matching no keyword set
}

// ChannelConfig describes one channel in the static lineup. The position of a
// channel within Config.Channels defines its classification priority: when an
// unassigned asset matches the keyword sets of several channels, the earliest
// listed channel wins. SortOrder only controls guide grid placement.
type ChannelConfig struct {
	ID        string   `json:"id"`        // Stable channel identifier
	Name      string   `json:"name"`      // Human-readable channel name
	Category  string   `json:"category"`  // Editorial grouping
	Color     string   `json:"color"`     // Brand accent color for the guide
	SortOrder int      `json:"sortOrder"` // Guide grid position, ascending
	Keywords  []string `json:"keywords"`  // Keyword set for heuristic asset assignment
}

// ConfigFile represents the JSON file structure for marshaling/unmarshaling
// configuration. Duration fields are stored as strings (e.g. "1m", "1h") and
// parsed into time.Duration values on load.
type ConfigFile struct {
	BaseURL            string          `json:"baseURL"`
	ListenPort         int             `json:"listenPort"`
	SourceURL          string          `json:"sourceURL"`
	SourceTimeout      string          `json:"sourceTimeout"` // Duration as string (e.g. "30s")
	SourceRateLimit    int             `json:"sourceRateLimit"`
	UserAgent          string          `json:"userAgent"`
	SnapshotPath       string          `json:"snapshotPath"`
	ScheduleDays       int             `json:"scheduleDays"`
	PlaceholderHours   int             `json:"placeholderHours"`
	SlotMinutes        int             `json:"slotMinutes"`
	RefreshInterval    string          `json:"refreshInterval"`    // Duration as string (e.g. "1m")
	RegenerateInterval string          `json:"regenerateInterval"` // Duration as string (e.g. "1h")
	CacheDuration      string          `json:"cacheDuration"`      // Duration as string (e.g. "30m")
	SyncInterval       string          `json:"syncInterval"`       // Duration as string (e.g. "12h")
	WorkerThreads      int             `json:"workerThreads"`
	RandomSeed         int64           `json:"randomSeed"`
	Debug              bool            `json:"debug"`
	LogLevel           string          `json:"logLevel"`
	Channels           []ChannelConfig `json:"channels"`
	DefaultChannelID   string          `json:"defaultChannelId"`
}

var (
	configCache *Config      // Cached configuration instance (singleton)
	configMutex sync.RWMutex // Mutex for safe concurrent access to configCache
)

// defaultConfigPath is where the engine looks for its settings file inside the
// deployment container.
const defaultConfigPath = "/settings/config.json"

// LoadConfig loads the configuration from file or returns the cached instance.
//
// Process:
//   - Uses double-checked locking to avoid redundant reloads.
//   - Attempts to load from the settings file.
//   - Falls back to default config if file is missing or invalid.
//   - Runs validation to ensure safe defaults.
//
// Returns:
//   - *Config: fully validated configuration object
func LoadConfig() *Config {
	configMutex.RLock()
	if configCache != nil {
		defer configMutex.RUnlock()
		return configCache
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check under write lock
	if configCache != nil {
		return configCache
	}

	// Attempt to load from file
	config, err := loadFromFile(defaultConfigPath)
	if err != nil {
		log.Printf("Failed to load config from %s: %v", defaultConfigPath, err)
		log.Printf("Falling back to default configuration...")
		config = getDefaultConfig()
	}

	// Ensure safe defaults for missing values
	validateAndSetDefaults(config)

	// Cache for future calls
	configCache = config

	if config.Debug {
		log.Printf("Configuration loaded:")
		log.Printf("  Channels: %d configured (default: %s)", len(config.Channels), config.DefaultChannelID)
		log.Printf("  Source URL: %s", config.SourceURL)
		log.Printf("  Schedule window: %d days", config.ScheduleDays)
		log.Printf("  Regenerate interval: %s", config.RegenerateInterval)
	}

	return config
}

// loadFromFile reads and parses the configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {

	// read from the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// unmarshal the config file
	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	// convert to our settings
	return convertFromFile(&configFile)
}

// convertFromFile converts a ConfigFile to Config, parsing duration strings into
// time.Duration values. An empty duration string is left at zero and picked up by
// validateAndSetDefaults.
func convertFromFile(cf *ConfigFile) (*Config, error) {
	config := &Config{
		BaseURL:          cf.BaseURL,
		ListenPort:       cf.ListenPort,
		SourceURL:        cf.SourceURL,
		SourceRateLimit:  cf.SourceRateLimit,
		UserAgent:        cf.UserAgent,
		SnapshotPath:     cf.SnapshotPath,
		ScheduleDays:     cf.ScheduleDays,
		PlaceholderHours: cf.PlaceholderHours,
		SlotMinutes:      cf.SlotMinutes,
		WorkerThreads:    cf.WorkerThreads,
		RandomSeed:       cf.RandomSeed,
		Debug:            cf.Debug,
		LogLevel:         cf.LogLevel,
		Channels:         cf.Channels,
		DefaultChannelID: cf.DefaultChannelID,
	}

	// Parse duration fields
	var err error
	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cf.SourceTimeout, "sourceTimeout", &config.SourceTimeout},
		{cf.RefreshInterval, "refreshInterval", &config.RefreshInterval},
		{cf.RegenerateInterval, "regenerateInterval", &config.RegenerateInterval},
		{cf.CacheDuration, "cacheDuration", &config.CacheDuration},
		{cf.SyncInterval, "syncInterval", &config.SyncInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		if *d.dst, err = time.ParseDuration(d.raw); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
	}

	return config, nil
}

// getDefaultConfig returns a baseline configuration with sensible defaults when no
// file is present: the standard university lineup with its classification keyword
// sets, listed in priority order (travel before education before career before
// wellness before how-to).
func getDefaultConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:8080",
		ListenPort:         8080,
		SourceURL:          "",
		SourceTimeout:      30 * time.Second,
		SourceRateLimit:    5,
		UserAgent:          "Tempest-Engine/1.0",
		SnapshotPath:       "/settings/catalog.db",
		ScheduleDays:       7,
		PlaceholderHours:   24,
		SlotMinutes:        30,
		RefreshInterval:    1 * time.Minute,
		RegenerateInterval: 1 * time.Hour,
		CacheDuration:      30 * time.Minute,
		SyncInterval:       12 * time.Hour,
		WorkerThreads:      8,
		RandomSeed:         0,
		Debug:              false,
		LogLevel:           "INFO",
		Channels:           DefaultChannels(),
		DefaultChannelID:   "campus-pulse",
	}
}

// DefaultChannels returns the built-in channel lineup. Order matters: it is the
// classification priority order, not the guide order (SortOrder carries that).
func DefaultChannels() []ChannelConfig {
	return []ChannelConfig{
		{
			ID:        "world-explorer",
			Name:      "World Explorer",
			Category:  "travel",
			Color:     "#2D9CDB",
			SortOrder: 4,
			Keywords:  []string{"travel", "journey", "explore", "destination", "adventure", "tour"},
		},
		{
			ID:        "mind-feed",
			Name:      "MindFeed",
			Category:  "education",
			Color:     "#9B51E0",
			SortOrder: 2,
			Keywords:  []string{"lecture", "tutorial", "education", "learning", "course", "seminar"},
		},
		{
			ID:        "career-compass",
			Name:      "Career Compass",
			Category:  "career",
			Color:     "#F2994A",
			SortOrder: 3,
			Keywords:  []string{"career", "job", "interview", "resume", "internship", "professional"},
		},
		{
			ID:        "wellness-wave",
			Name:      "Wellness Wave",
			Category:  "wellness",
			Color:     "#27AE60",
			SortOrder: 5,
			Keywords:  []string{"wellness", "meditation", "yoga", "mindfulness", "health", "fitness"},
		},
		{
			ID:        "how-to-hub",
			Name:      "How-To Hub",
			Category:  "how-to",
			Color:     "#EB5757",
			SortOrder: 6,
			Keywords:  []string{"how-to", "diy", "guide", "tips", "repair", "workshop"},
		},
		{
			ID:        "campus-pulse",
			Name:      "Campus Pulse",
			Category:  "campus",
			Color:     "#56CCF2",
			SortOrder: 1,
			Keywords:  nil, // default channel, catches everything unmatched
		},
	}
}

// validateAndSetDefaults ensures all config values are valid, filling in defaults
// for missing/invalid ones.
func validateAndSetDefaults(config *Config) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080"
	}
	if config.ListenPort <= 0 || config.ListenPort > 65535 {
		config.ListenPort = 8080
	}
	if config.SourceTimeout <= 0 {
		config.SourceTimeout = 30 * time.Second
	}
	if config.SourceRateLimit <= 0 {
		config.SourceRateLimit = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = "Tempest-Engine/1.0"
	}
	if config.SnapshotPath == "" {
		config.SnapshotPath = "/settings/catalog.db"
	}
	if config.ScheduleDays <= 0 {
		config.ScheduleDays = 7
	}
	if config.PlaceholderHours <= 0 {
		config.PlaceholderHours = 24
	}
	if config.SlotMinutes <= 0 {
		config.SlotMinutes = 30
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = 1 * time.Minute
	}
	if config.RegenerateInterval <= 0 {
		config.RegenerateInterval = 1 * time.Hour
	}
	if config.CacheDuration <= 0 {
		config.CacheDuration = 30 * time.Minute
	}
	if config.SyncInterval <= 0 {
		config.SyncInterval = 12 * time.Hour
	}
	if config.WorkerThreads <= 0 {
		config.WorkerThreads = 8
	}
	if config.LogLevel == "" {
		config.LogLevel = "INFO"
	}
	if len(config.Channels) == 0 {
		config.Channels = DefaultChannels()
	}

	// Validate each channel, dropping blank or duplicate ids
	seen := make(map[string]bool, len(config.Channels))
	valid := config.Channels[:0]
	for i := range config.Channels {
		ch := config.Channels[i]
		if ch.ID == "" || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		if ch.Name == "" {
			ch.Name = fmt.Sprintf("Channel %d", i+1)
		}
		if ch.SortOrder <= 0 {
			ch.SortOrder = i + 1
		}
		valid = append(valid, ch)
	}
	config.Channels = valid

	// The default channel must exist in the lineup
	if !seen[config.DefaultChannelID] {
		config.DefaultChannelID = config.Channels[len(config.Channels)-1].ID
	}
}

// ChannelByID returns the channel config matching the given id. Returns nil if no
// match is found.
func (c *Config) ChannelByID(id string) *ChannelConfig {

	// loop the lineup to find the channel
	for i := range c.Channels {
		if c.Channels[i].ID == id {
			return &c.Channels[i]
		}
	}
	return nil
}

// ChannelsBySortOrder returns a copy of the lineup sorted by SortOrder for guide
// rendering. The original slice (priority order) remains unmodified.
func (c *Config) ChannelsBySortOrder() []ChannelConfig {

	// copy the lineup so the priority ordering stays intact
	channels := make([]ChannelConfig, len(c.Channels))
	copy(channels, c.Channels)

	// Simple bubble sort (sufficient since the lineup is small)
	for i := 0; i < len(channels)-1; i++ {
		for j := i + 1; j < len(channels); j++ {
			if channels[i].SortOrder > channels[j].SortOrder {
				channels[i], channels[j] = channels[j], channels[i]
			}
		}
	}

	return channels
}

// CreateExampleConfig creates an example config file on disk.
func CreateExampleConfig(path string) error {
	example := ConfigFile{
		BaseURL:            "http://localhost:8080",
		ListenPort:         8080,
		SourceURL:          "http://content.example.edu/api/videos",
		SourceTimeout:      "30s",
		SourceRateLimit:    5,
		UserAgent:          "Tempest-Engine/1.0",
		SnapshotPath:       "/settings/catalog.db",
		ScheduleDays:       7,
		PlaceholderHours:   24,
		SlotMinutes:        30,
		RefreshInterval:    "1m",
		RegenerateInterval: "1h",
		CacheDuration:      "30m",
		SyncInterval:       "12h",
		WorkerThreads:      4,
		RandomSeed:         0,
		Debug:              false,
		LogLevel:           "INFO",
		Channels:           DefaultChannels(),
		DefaultChannelID:   "campus-pulse",
	}

	// setup the data properly
	data, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return err
	}

	// write the config file
	return os.WriteFile(path, data, 0644)
}

// ClearConfigCache resets the configCache to nil. Forces a reload on the next
// LoadConfig() call.
func ClearConfigCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	configCache = nil
}
