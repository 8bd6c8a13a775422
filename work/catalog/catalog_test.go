package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"tempest-engine/work/config"
	"tempest-engine/work/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Channels:         config.DefaultChannels(),
		DefaultChannelID: "campus-pulse",
	}
}

func asset(id, title string, tags ...string) *types.VideoAsset {
	return &types.VideoAsset{
		ID:              id,
		Title:           title,
		DurationSeconds: 30 * 60,
		Tags:            tags,
		UploadedAt:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// fakeFetcher is a canned asset source for sync tests.
type fakeFetcher struct {
	assets []*types.VideoAsset
	err    error
	calls  int
}

func (f *fakeFetcher) FetchAssets(ctx context.Context) ([]*types.VideoAsset, error) {
	f.calls++
	return f.assets, f.err
}

// fakeSnapshots is an in-memory Snapshotter.
type fakeSnapshots struct {
	assets   []*types.VideoAsset
	channels map[string]string
	saveErr  error
	loadErr  error
	saves    int
}

func (f *fakeSnapshots) SaveSnapshot(assets []*types.VideoAsset, channels map[string]string) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.assets = assets
	f.channels = channels
	return nil
}

func (f *fakeSnapshots) LoadSnapshot() ([]*types.VideoAsset, map[string]string, error) {
	return f.assets, f.channels, f.loadErr
}

func TestAddAndGetAsset(t *testing.T) {
	l := New(testConfig(), nil, nil)

	a := asset("v1", "Intro to Go")
	l.AddAsset(a, "mind-feed")

	got, ok := l.GetAsset("v1")
	require.True(t, ok)
	assert.Equal(t, "Intro to Go", got.Title)
	assert.Equal(t, "mind-feed", l.AssetChannel("v1"))
	assert.Equal(t, 1, l.Size())

	_, ok = l.GetAsset("nope")
	assert.False(t, ok)
}

func TestAddAssetMembershipIdempotent(t *testing.T) {
	l := New(testConfig(), nil, nil)

	a := asset("v1", "Intro to Go")
	l.AddAsset(a, "mind-feed")
	l.AddAsset(a, "mind-feed")
	l.AddAsset(a, "mind-feed")

	assert.Len(t, l.ChannelAssets("mind-feed"), 1)
}

func TestAddAssetReassignmentMovesChannels(t *testing.T) {
	l := New(testConfig(), nil, nil)

	a := asset("v1", "Intro to Go")
	l.AddAsset(a, "mind-feed")
	l.AddAsset(a, "world-explorer")

	assert.Empty(t, l.ChannelAssets("mind-feed"))
	require.Len(t, l.ChannelAssets("world-explorer"), 1)
	assert.Equal(t, "world-explorer", l.AssetChannel("v1"))
}

func TestAddAssetUnknownChannelStoresUnassigned(t *testing.T) {
	l := New(testConfig(), nil, nil)

	l.AddAsset(asset("v1", "Intro to Go"), "no-such-channel")

	_, ok := l.GetAsset("v1")
	assert.True(t, ok)
	assert.Empty(t, l.AssetChannel("v1"))
}

func TestChannelAssetsInsertionOrder(t *testing.T) {
	l := New(testConfig(), nil, nil)

	l.AddAsset(asset("b", "Second"), "mind-feed")
	l.AddAsset(asset("a", "First"), "mind-feed")
	l.AddAsset(asset("c", "Third"), "mind-feed")

	got := l.ChannelAssets("mind-feed")
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "c", got[2].ID)
}

func TestRemoveAsset(t *testing.T) {
	l := New(testConfig(), nil, nil)
	l.AddAsset(asset("v1", "Intro to Go"), "mind-feed")

	require.NoError(t, l.RemoveAsset("v1"))
	_, ok := l.GetAsset("v1")
	assert.False(t, ok)
	assert.Empty(t, l.ChannelAssets("mind-feed"))

	assert.ErrorIs(t, l.RemoveAsset("v1"), ErrAssetNotFound)
}

func TestSearchAssets(t *testing.T) {
	l := New(testConfig(), nil, nil)
	l.AddAsset(asset("b", "Go Tutorial"), "mind-feed")
	l.AddAsset(asset("a", "Advanced GO Patterns"), "mind-feed")
	l.AddAsset(asset("c", "Cooking Basics", "kitchen"), "campus-pulse")

	// case-insensitive, sorted by id for deterministic output
	got := l.SearchAssets("go")
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	// tags are searchable too
	got = l.SearchAssets("KITCHEN")
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	assert.Nil(t, l.SearchAssets("  "))
}

func TestClassifyLineupOrderWins(t *testing.T) {
	l := New(testConfig(), nil, nil)

	// matches both travel and education keywords; the earlier lineup entry wins
	assert.Equal(t, "world-explorer", l.Classify(asset("x", "Travel Lecture Series")))
	assert.Equal(t, "mind-feed", l.Classify(asset("y", "Calculus Lecture")))
	assert.Equal(t, "wellness-wave", l.Classify(asset("z", "Morning Yoga Flow")))

	// nothing matches: default channel
	assert.Equal(t, "campus-pulse", l.Classify(asset("w", "Untitled Footage")))
}

func TestSyncAddsAndClassifies(t *testing.T) {
	fetcher := &fakeFetcher{assets: []*types.VideoAsset{
		asset("t1", "Backpacking Japan travel vlog"),
		asset("e1", "Linear Algebra Lecture 1"),
		{Title: "no id, skipped"},
		nil,
	}}
	snaps := &fakeSnapshots{}
	l := New(testConfig(), fetcher, snaps)

	require.NoError(t, l.Sync(context.Background()))
	assert.Equal(t, 2, l.Size())
	assert.Equal(t, "world-explorer", l.AssetChannel("t1"))
	assert.Equal(t, "mind-feed", l.AssetChannel("e1"))
	assert.Equal(t, 1, snaps.saves)
}

func TestSyncRefreshKeepsMembership(t *testing.T) {
	fetcher := &fakeFetcher{assets: []*types.VideoAsset{asset("v1", "Old Title")}}
	l := New(testConfig(), fetcher, nil)
	require.NoError(t, l.Sync(context.Background()))

	// operator moved the asset by hand; a later sync must not undo that
	got, _ := l.GetAsset("v1")
	l.AddAsset(got, "world-explorer")

	fetcher.assets = []*types.VideoAsset{asset("v1", "New Title")}
	require.NoError(t, l.Sync(context.Background()))

	refreshed, ok := l.GetAsset("v1")
	require.True(t, ok)
	assert.Equal(t, "New Title", refreshed.Title)
	assert.Equal(t, "world-explorer", l.AssetChannel("v1"))
	assert.Equal(t, 1, l.Size())
}

func TestSyncFetchFailureKeepsCatalog(t *testing.T) {
	fetcher := &fakeFetcher{assets: []*types.VideoAsset{asset("v1", "Kept")}}
	l := New(testConfig(), fetcher, nil)
	require.NoError(t, l.Sync(context.Background()))

	fetcher.err = errors.New("upstream down")
	err := l.Sync(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, l.Size())
}

func TestSyncWithoutSourceIsNoop(t *testing.T) {
	l := New(testConfig(), nil, nil)
	assert.NoError(t, l.Sync(context.Background()))
	assert.Zero(t, l.Size())
}

func TestWarmStartFallsBackToSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("upstream down")}
	snaps := &fakeSnapshots{
		assets:   []*types.VideoAsset{asset("v1", "From Snapshot")},
		channels: map[string]string{"v1": "mind-feed"},
	}
	l := New(testConfig(), fetcher, snaps)

	l.WarmStart(context.Background())

	assert.Equal(t, 1, l.Size())
	assert.Equal(t, "mind-feed", l.AssetChannel("v1"))
}

func TestWarmStartPrefersLiveSync(t *testing.T) {
	fetcher := &fakeFetcher{assets: []*types.VideoAsset{asset("live", "Fresh")}}
	snaps := &fakeSnapshots{
		assets: []*types.VideoAsset{asset("stale", "Old")},
	}
	l := New(testConfig(), fetcher, snaps)

	l.WarmStart(context.Background())

	_, ok := l.GetAsset("live")
	assert.True(t, ok)
	_, ok = l.GetAsset("stale")
	assert.False(t, ok)
}
