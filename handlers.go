package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Storage failures surface as a 500 with the message passed through; this
// is an internal tool, not a hardened public API.
func writeStorageError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
}

// requirePlayer resolves the session to a player identity or answers the
// request itself with the 400 the original returned for anonymous callers.
func requirePlayer(app *App, w http.ResponseWriter, r *http.Request) (string, bool) {
	session, err := app.store.sessionFromRequest(r)
	if err != nil {
		writeStorageError(w, err)
		return "", false
	}
	if session == nil || session.Pseudo == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Utilisateur non connecté"})
		return "", false
	}
	return session.Pseudo, true
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func inscriptionHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}

		var req CredentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Requête invalide"})
			return
		}
		if req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Nom d'utilisateur et mot de passe requis"})
			return
		}
		if !isValidUsername(req.Username) {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Nom d'utilisateur invalide"})
			return
		}

		if ok, retry := app.limiter.allow(getClientIP(r)); !ok {
			writeJSON(w, http.StatusTooManyRequests, MessageResponse{
				Message: "Trop de tentatives, réessayez dans " + retry.Round(time.Second).String(),
			})
			return
		}

		err := app.store.RegisterUser(r.Context(), req.Username, req.Password)
		if errors.Is(err, errDuplicateUser) {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Ce nom d'utilisateur est déjà pris"})
			return
		}
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Inscription réussie"})
	}
}

func connexionHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}

		var req CredentialsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Requête invalide"})
			return
		}
		if req.Username == "" || req.Password == "" {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Nom d'utilisateur et mot de passe requis"})
			return
		}

		if ok, retry := app.limiter.allow(getClientIP(r)); !ok {
			writeJSON(w, http.StatusTooManyRequests, MessageResponse{
				Message: "Trop de tentatives, réessayez dans " + retry.Round(time.Second).String(),
			})
			return
		}

		err := app.store.AuthenticateUser(r.Context(), req.Username, req.Password)
		if errors.Is(err, errInvalidCredentials) {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Nom d'utilisateur ou mot de passe incorrect"})
			return
		}
		if err != nil {
			writeStorageError(w, err)
			return
		}

		session, err := app.store.CreateSession(r.Context(), req.Username, req.RememberMe, false)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeSessionCookie(w, session)
		writeJSON(w, http.StatusOK, AuthResponse{Message: "Connexion réussie", Username: req.Username})
	}
}

func checkAuthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := app.store.sessionFromRequest(r)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		if session == nil || session.Pseudo == "" {
			writeJSON(w, http.StatusOK, CheckAuthResponse{Authenticated: false})
			return
		}
		writeJSON(w, http.StatusOK, CheckAuthResponse{Authenticated: true, Username: session.Pseudo})
	}
}

func deconnexionHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			app.store.DeleteSession(r.Context(), cookie.Value)
		}
		clearSessionCookie(w)
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Déconnexion réussie"})
	}
}

func changePasswordHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}

		var req ChangePasswordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewPassword == "" {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Requête invalide"})
			return
		}

		err := app.store.ChangePassword(r.Context(), pseudo, req.OldPassword, req.NewPassword)
		if errors.Is(err, errInvalidCredentials) {
			writeJSON(w, http.StatusBadRequest, MessageResponse{Message: "Ancien mot de passe incorrect"})
			return
		}
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Mot de passe mis à jour avec succès"})
	}
}

func clickHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}

		var req ClickRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Requête invalide"})
			return
		}

		// The stored multiplier is authoritative; the client's value is
		// informational only. A mismatch means an outdated or tampering
		// client.
		if req.Multiplier != 0 {
			if level, _, err := app.store.Upgrades(r.Context(), pseudo); err == nil && req.Multiplier != level {
				log.Printf("click multiplier mismatch: pseudo=%s sent=%d stored=%d", pseudo, req.Multiplier, level)
			}
		}

		score, err := app.store.Click(r.Context(), pseudo)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ScoreResponse{Score: score})
	}
}

func scoreHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}
		score, err := app.store.Score(r.Context(), pseudo)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ScoreResponse{Score: score})
	}
}

func resetHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}
		if err := app.store.ResetScore(r.Context(), pseudo); err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

func buyMultiplierHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}
		result, err := app.store.BuyMultiplier(r.Context(), pseudo)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: result.Success, Message: result.Message})
	}
}

func buyAutoclickerHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}
		result, err := app.store.BuyAutoclicker(r.Context(), pseudo)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, SuccessResponse{Success: result.Success, Message: result.Message})
	}
}

func upgradesHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pseudo, ok := requirePlayer(app, w, r)
		if !ok {
			return
		}
		level, auto, err := app.store.Upgrades(r.Context(), pseudo)
		if err != nil {
			writeStorageError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, UpgradesResponse{Multiplier: level, Autoclicker: auto})
	}
}

func classementDataHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ClassementResponse{Classement: app.leaderboard.Entries()})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
