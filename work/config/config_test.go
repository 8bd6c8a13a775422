package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertFromFileParsesDurations(t *testing.T) {
	cf := &ConfigFile{
		SourceTimeout:      "45s",
		RefreshInterval:    "2m",
		RegenerateInterval: "90m",
		CacheDuration:      "10m",
		SyncInterval:       "6h",
	}

	cfg, err := convertFromFile(cf)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 2*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 90*time.Minute, cfg.RegenerateInterval)
	assert.Equal(t, 10*time.Minute, cfg.CacheDuration)
	assert.Equal(t, 6*time.Hour, cfg.SyncInterval)
}

func TestConvertFromFileEmptyDurationsLeftZero(t *testing.T) {
	cfg, err := convertFromFile(&ConfigFile{})
	require.NoError(t, err)
	assert.Zero(t, cfg.RefreshInterval)
}

func TestConvertFromFileRejectsBadDuration(t *testing.T) {
	_, err := convertFromFile(&ConfigFile{RegenerateInterval: "ninety minutes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regenerateInterval")
}

func TestValidateAndSetDefaultsFillsEverything(t *testing.T) {
	cfg := &Config{}
	validateAndSetDefaults(cfg)

	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, 7, cfg.ScheduleDays)
	assert.Equal(t, 24, cfg.PlaceholderHours)
	assert.Equal(t, 30, cfg.SlotMinutes)
	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, time.Hour, cfg.RegenerateInterval)
	assert.Equal(t, 30*time.Minute, cfg.CacheDuration)
	assert.Equal(t, 12*time.Hour, cfg.SyncInterval)
	assert.Equal(t, 8, cfg.WorkerThreads)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Len(t, cfg.Channels, 6)
	assert.Equal(t, "campus-pulse", cfg.DefaultChannelID)
}

func TestValidateAndSetDefaultsDropsDuplicateChannels(t *testing.T) {
	cfg := &Config{
		Channels: []ChannelConfig{
			{ID: "one", Name: "One"},
			{ID: "one", Name: "Duplicate"},
			{ID: "", Name: "Blank"},
			{ID: "two"},
		},
		DefaultChannelID: "missing",
	}
	validateAndSetDefaults(cfg)

	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, "One", cfg.Channels[0].Name)
	// a blank name gets a generated one
	assert.Equal(t, "Channel 4", cfg.Channels[1].Name)
	// an absent default falls back to the last valid channel
	assert.Equal(t, "two", cfg.DefaultChannelID)
}

func TestChannelByID(t *testing.T) {
	cfg := getDefaultConfig()

	ch := cfg.ChannelByID("mind-feed")
	require.NotNil(t, ch)
	assert.Equal(t, "MindFeed", ch.Name)

	assert.Nil(t, cfg.ChannelByID("nope"))
}

func TestChannelsBySortOrder(t *testing.T) {
	cfg := getDefaultConfig()

	sorted := cfg.ChannelsBySortOrder()
	require.Len(t, sorted, 6)
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1].SortOrder, sorted[i].SortOrder)
	}
	assert.Equal(t, "campus-pulse", sorted[0].ID)

	// the lineup keeps its classification priority order
	assert.Equal(t, "world-explorer", cfg.Channels[0].ID)
}

func TestLoadFromFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, CreateExampleConfig(path))

	cfg, err := loadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ListenPort)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, time.Hour, cfg.RegenerateInterval)
	assert.Len(t, cfg.Channels, 6)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := loadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFromFileBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := loadFromFile(path)
	assert.Error(t, err)
}
