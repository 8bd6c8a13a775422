package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tempest-engine/work/logger"
	"tempest-engine/work/types"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the sqlite warm-cache database. It holds one table: the catalog
// snapshot written after every successful sync and read back on cold starts when
// the asset source is unreachable. It is never a source of truth.
type Store struct {
	*sql.DB
}

// Open creates the snapshot database with WAL mode and sane pragmas, running any
// pending migrations.
func Open(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The snapshot is written from one goroutine; a small pool is plenty
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	wrapper := &Store{DB: db}

	if err := wrapper.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("{store/store - Open} snapshot database opened: %s", path)
	return wrapper, nil
}

// migrate runs all migration files
func (s *Store) migrate() error {
	// Create migrations table if not exists
	_, err := s.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		// Extract version from filename (e.g., "001_initial_schema.sql" -> 1)
		var version int
		fmt.Sscanf(entry.Name(), "%d_", &version)

		// Check if already applied
		var exists bool
		err := s.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}
		if exists {
			continue
		}

		content, err := migrations.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}

		// Execute migration in transaction
		tx, err := s.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", entry.Name(), err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", entry.Name(), err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", entry.Name(), err)
		}

		logger.Debug("{store/store - migrate} applied migration: %s", entry.Name())
	}

	return nil
}

// SaveSnapshot replaces the persisted catalog snapshot with the given assets and
// their channel assignments, atomically within one transaction.
func (s *Store) SaveSnapshot(assets []*types.VideoAsset, channels map[string]string) error {
	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM catalog_snapshot"); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO catalog_snapshot
			(id, title, description, source_reference, thumbnail, duration_seconds,
			 category, tags, uploaded_at, last_synced_at, metadata, channel_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, asset := range assets {
		tags, _ := json.Marshal(asset.Tags)
		meta, _ := json.Marshal(asset.Metadata)
		_, err := stmt.Exec(
			asset.ID, asset.Title, asset.Description, asset.SourceReference,
			asset.Thumbnail, asset.DurationSeconds, asset.Category, string(tags),
			asset.UploadedAt, asset.LastSyncedAt, string(meta), channels[asset.ID],
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert snapshot row %s: %w", asset.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	logger.Debug("{store/store - SaveSnapshot} persisted %d assets", len(assets))
	return nil
}

// LoadSnapshot reads back the persisted catalog snapshot: the assets plus a map
// of asset id to channel assignment. Rows that fail to scan are skipped rather
// than failing the whole load.
func (s *Store) LoadSnapshot() ([]*types.VideoAsset, map[string]string, error) {
	rows, err := s.Query(`
		SELECT id, title, description, source_reference, thumbnail, duration_seconds,
		       category, tags, uploaded_at, last_synced_at, metadata, channel_id
		FROM catalog_snapshot
		ORDER BY id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer rows.Close()

	var assets []*types.VideoAsset
	channels := make(map[string]string)
	for rows.Next() {
		var (
			asset      types.VideoAsset
			tags, meta string
			channelID  string
			uploaded   sql.NullTime
			synced     sql.NullTime
		)
		err := rows.Scan(
			&asset.ID, &asset.Title, &asset.Description, &asset.SourceReference,
			&asset.Thumbnail, &asset.DurationSeconds, &asset.Category, &tags,
			&uploaded, &synced, &meta, &channelID,
		)
		if err != nil {
			logger.Warn("{store/store - LoadSnapshot} skipping unreadable row: %v", err)
			continue
		}
		if uploaded.Valid {
			asset.UploadedAt = uploaded.Time
		}
		if synced.Valid {
			asset.LastSyncedAt = synced.Time
		}
		json.Unmarshal([]byte(tags), &asset.Tags)
		json.Unmarshal([]byte(meta), &asset.Metadata)

		assets = append(assets, &asset)
		if channelID != "" {
			channels[asset.ID] = channelID
		}
	}

	return assets, channels, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	logger.Debug("{store/store - Close} closing snapshot database")
	return s.DB.Close()
}
