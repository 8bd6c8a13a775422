package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"tempest-engine/work/config"
	"tempest-engine/work/logger"
	"tempest-engine/work/metrics"
	"tempest-engine/work/types"

	"github.com/puzpuzpuz/xsync/v3"
)

// ErrAssetNotFound is returned by mutating catalog operations that reference an
// unknown asset id. Read operations signal absence with a boolean instead.
var ErrAssetNotFound = errors.New("asset not found")

// Fetcher is the catalog's view of the external asset source: a single bulk-fetch
// operation returning the full asset listing. Failures are non-fatal to the
// already-loaded catalog.
type Fetcher interface {
	FetchAssets(ctx context.Context) ([]*types.VideoAsset, error)
}

// Snapshotter persists a catalog snapshot for cold starts. It is a warm cache
// only, never a source of truth; a fresh sync always overwrites its contents.
type Snapshotter interface {
	SaveSnapshot(assets []*types.VideoAsset, channels map[string]string) error
	LoadSnapshot() ([]*types.VideoAsset, map[string]string, error)
}

// Library is the authoritative in-process video catalog: the mapping from asset id
// to asset, and from channel id to the ordered list of asset ids assigned to it.
// An asset belongs to at most one channel; assigning it elsewhere removes it from
// the prior channel's list.
//
// The asset index is a concurrent map so guide queries can read without blocking;
// channel membership lists are guarded by a single mutex since they are small and
// mutated only during sync and explicit assignment.
type Library struct {
	cfg        *config.Config
	assets     *xsync.MapOf[string, *types.VideoAsset] // concurrent map of all known assets keyed by id
	mu         sync.RWMutex                            // guards channelAssets and assetChannel
	chanAssets map[string][]string                     // channel id -> asset ids in insertion order
	assetChan  map[string]string                       // asset id -> owning channel id
	classifier *Classifier
	source     Fetcher     // external asset source; may be nil when no source is configured
	snapshots  Snapshotter // warm-cache store; may be nil
}

// New creates a Library wired to the given source and snapshot store. Either
// collaborator may be nil: a nil source disables syncing (tests and offline runs),
// a nil snapshot store disables the cold-start warm cache.
func New(cfg *config.Config, source Fetcher, snapshots Snapshotter) *Library {
	return &Library{
		cfg:        cfg,
		assets:     xsync.NewMapOf[string, *types.VideoAsset](),
		chanAssets: make(map[string][]string),
		assetChan:  make(map[string]string),
		classifier: NewClassifier(cfg),
		source:     source,
		snapshots:  snapshots,
	}
}

// AddAsset upserts the asset by id and, when channelID names a configured channel,
// appends the asset to that channel's list unless already present. Calling it
// repeatedly with the same asset/channel pair is a no-op on membership. An empty
// channelID stores the asset unassigned.
func (l *Library) AddAsset(asset *types.VideoAsset, channelID string) {
	if asset == nil || asset.ID == "" {
		return
	}

	l.assets.Store(asset.ID, asset)

	if channelID == "" || l.cfg.ChannelByID(channelID) == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// already assigned to this channel, nothing to do
	if l.assetChan[asset.ID] == channelID {
		return
	}

	// moving channels strips the asset from its prior list first
	if prior, ok := l.assetChan[asset.ID]; ok {
		l.chanAssets[prior] = removeID(l.chanAssets[prior], asset.ID)
	}

	l.chanAssets[channelID] = append(l.chanAssets[channelID], asset.ID)
	l.assetChan[asset.ID] = channelID
}

// RemoveAsset deletes the asset from the index and strips it from every channel's
// id list. Removing an unknown id returns ErrAssetNotFound.
func (l *Library) RemoveAsset(id string) error {
	if _, ok := l.assets.Load(id); !ok {
		return fmt.Errorf("remove %q: %w", id, ErrAssetNotFound)
	}
	l.assets.Delete(id)

	l.mu.Lock()
	defer l.mu.Unlock()
	if ch, ok := l.assetChan[id]; ok {
		l.chanAssets[ch] = removeID(l.chanAssets[ch], id)
		delete(l.assetChan, id)
	}
	return nil
}

// GetAsset returns the asset for id, with ok=false when it is unknown.
func (l *Library) GetAsset(id string) (*types.VideoAsset, bool) {
	return l.assets.Load(id)
}

// ChannelAssets returns the assets currently assigned to the channel, in insertion
// order. An unknown or empty channel yields an empty slice, never an error.
func (l *Library) ChannelAssets(channelID string) []*types.VideoAsset {
	l.mu.RLock()
	ids := make([]string, len(l.chanAssets[channelID]))
	copy(ids, l.chanAssets[channelID])
	l.mu.RUnlock()

	assets := make([]*types.VideoAsset, 0, len(ids))
	for _, id := range ids {
		if asset, ok := l.assets.Load(id); ok {
			assets = append(assets, asset)
		}
	}
	return assets
}

// AssetChannel returns the id of the channel the asset is assigned to, or an
// empty string when the asset is unassigned or unknown.
func (l *Library) AssetChannel(id string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.assetChan[id]
}

// SearchAssets returns all assets whose title, description, category, or any tag
// contains the query, case-insensitively. Results are sorted by id so repeated
// searches against an unchanged catalog are deterministic.
func (l *Library) SearchAssets(query string) []*types.VideoAsset {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var matches []*types.VideoAsset
	l.assets.Range(func(_ string, asset *types.VideoAsset) bool {
		if strings.Contains(strings.ToLower(asset.SearchText()), query) {
			matches = append(matches, asset)
		}
		return true
	})

	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches
}

// Classify decides which channel an unassigned asset belongs to, testing the
// asset's searchable text against each channel's keyword set in lineup order.
// First match wins; no match falls back to the default channel.
func (l *Library) Classify(asset *types.VideoAsset) string {
	return l.classifier.ChannelFor(asset)
}

// Size returns the number of assets in the catalog.
func (l *Library) Size() int {
	return l.assets.Size()
}

// Sync performs a bulk load from the external asset source. Assets not yet present
// by id are classified and added; assets already present get their metadata
// refreshed in place without disturbing channel membership. A fetch failure leaves
// the catalog untouched and is reported to the caller; per-asset problems are
// skipped so one corrupt record never aborts the rest of the load.
func (l *Library) Sync(ctx context.Context) error {
	if l.source == nil {
		logger.Debug("{catalog/catalog - Sync} no asset source configured, skipping sync")
		return nil
	}

	fetched, err := l.source.FetchAssets(ctx)
	if err != nil {
		metrics.SourceSyncErrors.Inc()
		logger.Error("{catalog/catalog - Sync} asset source fetch failed, keeping current catalog: %v", err)
		return fmt.Errorf("asset source fetch: %w", err)
	}

	added, refreshed, skipped := 0, 0, 0
	for _, asset := range fetched {
		if asset == nil || asset.ID == "" {
			skipped++
			continue
		}
		if existing, ok := l.assets.Load(asset.ID); ok {
			// keep channel membership, refresh the record
			asset.LastSyncedAt = existing.LastSyncedAt
			l.assets.Store(asset.ID, asset)
			refreshed++
			continue
		}
		l.AddAsset(asset, l.Classify(asset))
		added++
	}

	l.publishMetrics()
	logger.Info("{catalog/catalog - Sync} sync complete: %d added, %d refreshed, %d skipped, %d total",
		added, refreshed, skipped, l.assets.Size())

	l.saveSnapshot()
	return nil
}

// WarmStart populates the catalog at process start: a live sync when the source is
// reachable, otherwise the last persisted snapshot. Starting with an empty catalog
// is not an error; channels simply run placeholder programming until a sync lands.
func (l *Library) WarmStart(ctx context.Context) {
	if err := l.Sync(ctx); err == nil && l.assets.Size() > 0 {
		return
	}

	if l.snapshots == nil {
		logger.Warn("{catalog/catalog - WarmStart} no snapshot store, starting with an empty catalog")
		return
	}

	assets, channels, err := l.snapshots.LoadSnapshot()
	if err != nil {
		logger.Warn("{catalog/catalog - WarmStart} snapshot load failed, starting with an empty catalog: %v", err)
		return
	}

	for _, asset := range assets {
		l.AddAsset(asset, channels[asset.ID])
	}
	l.publishMetrics()
	logger.Info("{catalog/catalog - WarmStart} restored %d assets from snapshot", len(assets))
}

// saveSnapshot writes the current catalog to the warm-cache store. Failures are
// logged and swallowed: the snapshot is an optimization, not required state.
func (l *Library) saveSnapshot() {
	if l.snapshots == nil {
		return
	}

	var assets []*types.VideoAsset
	l.assets.Range(func(_ string, asset *types.VideoAsset) bool {
		assets = append(assets, asset)
		return true
	})

	l.mu.RLock()
	channels := make(map[string]string, len(l.assetChan))
	for id, ch := range l.assetChan {
		channels[id] = ch
	}
	l.mu.RUnlock()

	if err := l.snapshots.SaveSnapshot(assets, channels); err != nil {
		logger.Warn("{catalog/catalog - saveSnapshot} snapshot save failed: %v", err)
	}
}

// publishMetrics refreshes the per-channel catalog gauges.
func (l *Library) publishMetrics() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ch := range l.cfg.Channels {
		metrics.CatalogAssets.WithLabelValues(ch.ID).Set(float64(len(l.chanAssets[ch.ID])))
	}
}

// removeID filters one id out of a slice, preserving order.
func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
