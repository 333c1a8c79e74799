package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
)

// Pages the global maintenance flag takes offline. The soon page itself and
// everything under /admin stay reachable so the flag can be turned back off.
var maintenanceBlockedPages = map[string]bool{
	"index":      true,
	"shop":       true,
	"classement": true,
}

func (s *Store) MaintenanceEnabled(ctx context.Context) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var enabled int64
	err := s.db.QueryRowContext(ctx, `SELECT enabled FROM maintenance WHERE id = 1`).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read maintenance flag: %w", err)
	}
	return enabled != 0, nil
}

func (s *Store) SetMaintenance(ctx context.Context, on bool) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	enabled := 0
	if on {
		enabled = 1
	}
	if _, err := s.db.ExecContext(ctx, s.q(`
		UPDATE maintenance SET enabled = ? WHERE id = 1
	`), enabled); err != nil {
		return fmt.Errorf("set maintenance flag: %w", err)
	}
	return nil
}

func (s *Store) SetSoonPage(ctx context.Context, page string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO pages_soon (page) VALUES (?)
		ON CONFLICT (page) DO NOTHING
	`), page); err != nil {
		return fmt.Errorf("set soon page: %w", err)
	}
	return nil
}

func (s *Store) UnsetSoonPage(ctx context.Context, page string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM pages_soon WHERE page = ?
	`), page); err != nil {
		return fmt.Errorf("unset soon page: %w", err)
	}
	return nil
}

func (s *Store) SoonPages(ctx context.Context) ([]string, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT page FROM pages_soon ORDER BY page`)
	if err != nil {
		return nil, fmt.Errorf("list soon pages: %w", err)
	}
	defer rows.Close()

	pages := []string{}
	for rows.Next() {
		var page string
		if err := rows.Scan(&page); err != nil {
			return nil, fmt.Errorf("scan soon page: %w", err)
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *Store) IsSoonPage(ctx context.Context, page string) (bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var one int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT 1 FROM pages_soon WHERE page = ?
	`), page).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check soon page: %w", err)
	}
	return true, nil
}

// pageFromPath maps a request path to a page identifier: "/" and
// "/index.html" are "index", "/shop" and "/shop.html" are "shop", and so
// on. Paths that are not page-shaped (assets, nested paths) map to "".
func pageFromPath(path string) string {
	if path == "/" {
		return "index"
	}
	name := strings.TrimPrefix(path, "/")
	if strings.Contains(name, "/") {
		return ""
	}
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		if name[dot:] != ".html" {
			return ""
		}
		name = name[:dot]
	}
	return name
}

// maintenanceGate runs before identity resolution on every request. A
// storage error reading the flags fails open: serving the site beats strict
// gating when the database hiccups.
func maintenanceGate(store *Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := pageFromPath(r.URL.Path)
		if page == "" || page == "soon" || strings.HasPrefix(r.URL.Path, "/admin") {
			next.ServeHTTP(w, r)
			return
		}

		if maintenanceBlockedPages[page] {
			enabled, err := store.MaintenanceEnabled(r.Context())
			if err != nil {
				log.Println("maintenance flag read failed:", err)
			} else if enabled {
				http.Redirect(w, r, "/soon.html", http.StatusFound)
				return
			}
		}

		soon, err := store.IsSoonPage(r.Context(), page)
		if err != nil {
			log.Println("soon page read failed:", err)
		} else if soon {
			http.Redirect(w, r, "/soon.html", http.StatusFound)
			return
		}

		next.ServeHTTP(w, r)
	})
}
