package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// requireAdmin resolves the session and answers 403 itself when the caller
// does not hold the admin capability.
func requireAdmin(app *App, w http.ResponseWriter, r *http.Request) bool {
	session, err := app.store.sessionFromRequest(r)
	if err != nil {
		writeStorageError(w, err)
		return false
	}
	if session == nil || !session.IsAdmin {
		writeJSON(w, http.StatusForbidden, MessageResponse{Message: "Accès refusé"})
		return false
	}
	return true
}

func adminLoginHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if app.adminHash == "" {
			writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: "Mot de passe incorrect"})
			return
		}

		var req AdminLoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Requête invalide"})
			return
		}

		if ok, retry := app.limiter.allow(getClientIP(r)); !ok {
			writeJSON(w, http.StatusTooManyRequests, MessageResponse{
				Message: "Trop de tentatives, réessayez dans " + retry.Round(time.Second).String(),
			})
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(app.adminHash), []byte(req.Password)) != nil {
			writeJSON(w, http.StatusUnauthorized, MessageResponse{Message: "Mot de passe incorrect"})
			return
		}

		// A logged-in player keeps their session and gains the admin flag;
		// anonymous callers get an admin-only session.
		session, err := app.store.sessionFromRequest(r)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		if session != nil {
			if err := app.store.MarkSessionAdmin(r.Context(), session.ID); err != nil {
				writeStorageError(w, err)
				return
			}
		} else {
			session, err = app.store.CreateSession(r.Context(), "", false, true)
			if err != nil {
				writeStorageError(w, err)
				return
			}
			writeSessionCookie(w, session)
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func adminResetScoresHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if !requireAdmin(app, w, r) {
			return
		}
		if err := app.store.ResetAllScores(r.Context()); err != nil {
			writeStorageError(w, err)
			return
		}
		// The ranking changed for everyone; don't wait for the next tick.
		if err := app.leaderboard.Rebuild(context.Background()); err != nil {
			log.Println("classement rebuild after reset failed:", err)
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func maintenanceToggleHandler(app *App, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if !requireAdmin(app, w, r) {
			return
		}
		if err := app.store.SetMaintenance(r.Context(), enabled); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func soonHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if !requireAdmin(app, w, r) {
			return
		}
		page, ok := decodeSoonPage(w, r)
		if !ok {
			return
		}
		if err := app.store.SetSoonPage(r.Context(), page); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func unssoonHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if !requireAdmin(app, w, r) {
			return
		}
		page, ok := decodeSoonPage(w, r)
		if !ok {
			return
		}
		if err := app.store.UnsetSoonPage(r.Context(), page); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func soonListHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireAdmin(app, w, r) {
			return
		}
		pages, err := app.store.SoonPages(r.Context())
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SoonListResponse{Pages: pages})
	}
}

// decodeSoonPage reads and normalizes the page name, so "shop.html", "/shop"
// and "shop" all target the same row.
func decodeSoonPage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req SoonPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Requête invalide"})
		return "", false
	}
	page := strings.TrimSpace(req.Page)
	page = strings.TrimPrefix(page, "/")
	page = strings.TrimSuffix(page, ".html")
	if page == "" {
		writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Page requise"})
		return "", false
	}
	return page, true
}
