package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	sessionCookieName  = "session_id"
	sessionTTL         = 2 * time.Hour
	sessionTTLRemember = 30 * 24 * time.Hour
)

var (
	errDuplicateUser      = errors.New("USERNAME_TAKEN")
	errInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	errSessionExpired     = errors.New("SESSION_EXPIRED")
)

type Session struct {
	ID        string
	Pseudo    string
	IsAdmin   bool
	ExpiresAt time.Time
}

func (s *Store) RegisterUser(ctx context.Context, username string, password string) error {
	username = strings.TrimSpace(username)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO utilisateurs (pseudo, mot_de_passe)
		VALUES (?, ?)
		ON CONFLICT (pseudo) DO NOTHING
	`), username, string(hash))
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create user rows: %w", err)
	}
	if rows == 0 {
		return errDuplicateUser
	}
	return nil
}

func (s *Store) AuthenticateUser(ctx context.Context, username string, password string) error {
	username = strings.TrimSpace(username)

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var hash string
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT mot_de_passe FROM utilisateurs WHERE pseudo = ?
	`), username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return errInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return errInvalidCredentials
	}
	return nil
}

func (s *Store) ChangePassword(ctx context.Context, username string, oldPassword string, newPassword string) error {
	if err := s.AuthenticateUser(ctx, username, oldPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`
		UPDATE utilisateurs SET mot_de_passe = ? WHERE pseudo = ?
	`), string(hash), username); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateSession opens a server-side session for pseudo. A pseudo of "" is a
// bare session carrying only the admin capability (admin login without a
// player account).
func (s *Store) CreateSession(ctx context.Context, pseudo string, remember bool, admin bool) (*Session, error) {
	sessionID, err := randomToken(24)
	if err != nil {
		return nil, err
	}

	ttl := sessionTTL
	if remember {
		ttl = sessionTTLRemember
	}
	expiresAt := time.Now().UTC().Add(ttl)

	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	isAdmin := 0
	if admin {
		isAdmin = 1
	}
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO sessions (session_id, pseudo, is_admin, expires_at)
		VALUES (?, ?, ?, ?)
	`), sessionID, pseudo, isAdmin, expiresAt.Unix()); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Session{ID: sessionID, Pseudo: pseudo, IsAdmin: admin, ExpiresAt: expiresAt}, nil
}

func (s *Store) SessionByID(ctx context.Context, sessionID string) (*Session, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var session Session
	var isAdmin int64
	var expiresUnix int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT session_id, pseudo, is_admin, expires_at
		FROM sessions
		WHERE session_id = ?
	`), sessionID).Scan(&session.ID, &session.Pseudo, &isAdmin, &expiresUnix)
	if err != nil {
		return nil, err
	}
	session.IsAdmin = isAdmin != 0
	session.ExpiresAt = time.Unix(expiresUnix, 0).UTC()

	if time.Now().UTC().After(session.ExpiresAt) {
		s.DeleteSession(ctx, sessionID)
		return nil, errSessionExpired
	}
	return &session, nil
}

func (s *Store) MarkSessionAdmin(ctx context.Context, sessionID string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`
		UPDATE sessions SET is_admin = 1 WHERE session_id = ?
	`), sessionID); err != nil {
		return fmt.Errorf("mark session admin: %w", err)
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, sessionID string) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _ = s.db.ExecContext(ctx, s.q(`
		DELETE FROM sessions WHERE session_id = ?
	`), sessionID)
}

// sessionFromRequest resolves the caller's session from the cookie. A
// missing cookie, an unknown token and an expired session all resolve to
// nil; only a storage failure is an error.
func (s *Store) sessionFromRequest(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}
	session, err := s.SessionByID(r.Context(), cookie.Value)
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, errSessionExpired) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return session, nil
}

func writeSessionCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func randomToken(bytesLen int) (string, error) {
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
