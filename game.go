package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	multiplierCost  = 900
	autoclickerCost = 5000

	// Single one-shot upgrade observed in the original game: level 1 -> 2.
	multiplierUpgraded = 2
)

// PurchaseResult distinguishes the two normal "no sale" outcomes from real
// failures: not enough cookies, or the upgrade is already owned. Neither is
// an error.
type PurchaseResult struct {
	Success bool
	Message string
}

const (
	msgNotEnoughCookies = "Pas assez de cookies"
	msgMultiplierOwned  = "Multiplicateur déjà acheté"
	msgAutoclickerOwned = "Autoclicker déjà acheté"
)

// Click applies one click for pseudo and returns the new score. The stored
// multiplier column is the per-click increment; the client-reported value is
// never trusted (callers log a mismatch, see clickHandler).
func (s *Store) Click(ctx context.Context, pseudo string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var score int64
	err := s.db.QueryRowContext(ctx, s.q(`
		UPDATE utilisateurs
		SET score = score + multiplier
		WHERE pseudo = ?
		RETURNING score
	`), pseudo).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		// Upsert semantics: a score write from an identity without a record
		// creates one.
		if err := s.ensurePlayer(ctx, pseudo); err != nil {
			return 0, err
		}
		err = s.db.QueryRowContext(ctx, s.q(`
			UPDATE utilisateurs
			SET score = score + multiplier
			WHERE pseudo = ?
			RETURNING score
		`), pseudo).Scan(&score)
	}
	if err != nil {
		return 0, fmt.Errorf("click update: %w", err)
	}
	return score, nil
}

// Score returns the current score, or 0 when no record exists yet.
func (s *Store) Score(ctx context.Context, pseudo string) (int64, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var score int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT score FROM utilisateurs WHERE pseudo = ?
	`), pseudo).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load score: %w", err)
	}
	return score, nil
}

// ResetScore zeroes the score unconditionally. Upgrades are untouched.
func (s *Store) ResetScore(ctx context.Context, pseudo string) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.q(`
		UPDATE utilisateurs SET score = 0 WHERE pseudo = ?
	`), pseudo); err != nil {
		return fmt.Errorf("reset score: %w", err)
	}
	return nil
}

// BuyMultiplier deducts the cost and sets the upgraded level in one
// conditional update. Checking the affected-row count is what makes
// concurrent purchases safe: at score 900, N simultaneous calls produce
// exactly one success and the balance never goes negative.
func (s *Store) BuyMultiplier(ctx context.Context, pseudo string) (PurchaseResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE utilisateurs
		SET score = score - ?, multiplier = ?
		WHERE pseudo = ? AND score >= ? AND multiplier < ?
	`), multiplierCost, multiplierUpgraded, pseudo, multiplierCost, multiplierUpgraded)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("buy multiplier: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("buy multiplier rows: %w", err)
	}
	if rows > 0 {
		return PurchaseResult{Success: true}, nil
	}

	level, _, err := s.Upgrades(ctx, pseudo)
	if err != nil {
		return PurchaseResult{}, err
	}
	if level >= multiplierUpgraded {
		return PurchaseResult{Message: msgMultiplierOwned}, nil
	}
	return PurchaseResult{Message: msgNotEnoughCookies}, nil
}

// BuyAutoclicker mirrors BuyMultiplier; the autoclicker guard blocks the
// double-charge the original left to a disabled client button.
func (s *Store) BuyAutoclicker(ctx context.Context, pseudo string) (PurchaseResult, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, s.q(`
		UPDATE utilisateurs
		SET score = score - ?, autoclicker = 1
		WHERE pseudo = ? AND score >= ? AND autoclicker = 0
	`), autoclickerCost, pseudo, autoclickerCost)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("buy autoclicker: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("buy autoclicker rows: %w", err)
	}
	if rows > 0 {
		return PurchaseResult{Success: true}, nil
	}

	_, owned, err := s.Upgrades(ctx, pseudo)
	if err != nil {
		return PurchaseResult{}, err
	}
	if owned {
		return PurchaseResult{Message: msgAutoclickerOwned}, nil
	}
	return PurchaseResult{Message: msgNotEnoughCookies}, nil
}

// Upgrades returns the (multiplier level, autoclicker owned) snapshot, with
// the starting values when no record exists.
func (s *Store) Upgrades(ctx context.Context, pseudo string) (int64, bool, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	var level int64
	var auto int64
	err := s.db.QueryRowContext(ctx, s.q(`
		SELECT multiplier, autoclicker FROM utilisateurs WHERE pseudo = ?
	`), pseudo).Scan(&level, &auto)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load upgrades: %w", err)
	}
	return level, auto != 0, nil
}

func (s *Store) ensurePlayer(ctx context.Context, pseudo string) error {
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO utilisateurs (pseudo, mot_de_passe)
		VALUES (?, '')
		ON CONFLICT (pseudo) DO NOTHING
	`), pseudo); err != nil {
		return fmt.Errorf("ensure player: %w", err)
	}
	return nil
}

// ResetAllScores is the admin bulk reset.
func (s *Store) ResetAllScores(ctx context.Context) error {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `UPDATE utilisateurs SET score = 0`); err != nil {
		return fmt.Errorf("reset all scores: %w", err)
	}
	return nil
}
