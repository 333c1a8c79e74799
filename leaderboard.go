package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type ClassementEntry struct {
	Pseudo string `json:"pseudo"`
	Score  int64  `json:"score"`
}

// TopScores is the leaderboard projection: every player, score descending,
// ties broken by pseudo ascending so the order is deterministic.
func (s *Store) TopScores(ctx context.Context) ([]ClassementEntry, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT pseudo, score
		FROM utilisateurs
		ORDER BY score DESC, pseudo ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load classement: %w", err)
	}
	defer rows.Close()

	entries := []ClassementEntry{}
	for rows.Next() {
		var entry ClassementEntry
		if err := rows.Scan(&entry.Pseudo, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan classement row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// LeaderboardCache holds the served snapshot. It is rebuilt at startup and
// on a fixed interval, and mirrored to a JSON file so a restart can serve
// the last known ranking before the database is consulted again. Readers
// always see a complete snapshot: rebuilds swap the slice under the lock
// and the file write goes through a temp file + rename.
type LeaderboardCache struct {
	store    *Store
	path     string
	interval time.Duration

	mu      sync.RWMutex
	entries []ClassementEntry
}

func newLeaderboardCache(store *Store, path string, interval time.Duration) *LeaderboardCache {
	if interval <= 0 {
		interval = time.Hour
	}
	return &LeaderboardCache{store: store, path: path, interval: interval}
}

func (c *LeaderboardCache) Entries() []ClassementEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]ClassementEntry, len(c.entries))
	copy(entries, c.entries)
	return entries
}

func (c *LeaderboardCache) Rebuild(ctx context.Context) error {
	entries, err := c.store.TopScores(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	if c.path != "" {
		if err := c.writeSnapshot(entries); err != nil {
			log.Println("classement cache write failed:", err)
		}
	}
	return nil
}

// LoadSnapshot reads the on-disk cache. An absent file is not an error: the
// cache starts empty.
func (c *LeaderboardCache) LoadSnapshot() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read classement cache: %w", err)
	}

	var entries []ClassementEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode classement cache: %w", err)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return nil
}

func (c *LeaderboardCache) writeSnapshot(entries []ClassementEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), "classement-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path)
}

// Start runs the periodic refresh until the process exits.
func (c *LeaderboardCache) Start() {
	go func() {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := c.Rebuild(context.Background()); err != nil {
				log.Println("classement refresh failed:", err)
			}
		}
	}()
}
