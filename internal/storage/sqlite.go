// Package storage is the durable persistence collaborator: caller quota
// state, the short-lived result cache, and report records, all in a single
// SQLite database. Quota mutations are conditional UPDATEs so that two
// concurrent requests can never drive a counter negative.
package storage

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/painscout/painscout/internal/models"
	"github.com/painscout/painscout/internal/quota"
)

const schema = `
CREATE TABLE IF NOT EXISTS caller_profiles (
  user_id        TEXT PRIMARY KEY,
  email          TEXT,
  tier           TEXT NOT NULL DEFAULT 'free',
  monthly_used   INTEGER NOT NULL DEFAULT 0,
  monthly_limit  INTEGER NOT NULL DEFAULT 0,
  credits        INTEGER NOT NULL DEFAULT 0,
  updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS email_signups (
  email          TEXT PRIMARY KEY,
  searches_used  INTEGER NOT NULL DEFAULT 0,
  created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS anonymous_usage (
  caller_key     TEXT PRIMARY KEY,
  daily_count    INTEGER NOT NULL DEFAULT 0,
  reset_date     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS search_cache (
  query_hash     TEXT PRIMARY KEY,
  search_id      TEXT NOT NULL,
  query_text     TEXT NOT NULL,
  platforms      TEXT NOT NULL,
  time_filter    TEXT,
  results        TEXT NOT NULL,
  created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
  expires_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expiry ON search_cache(expires_at);
CREATE TABLE IF NOT EXISTS reports (
  id               TEXT PRIMARY KEY,
  user_id          TEXT NOT NULL,
  search_id        TEXT,
  report_type      TEXT NOT NULL,
  selected_results TEXT NOT NULL,
  markdown         TEXT NOT NULL,
  created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_reports_user ON reports(user_id, created_at);
`

// ErrNotFound reports that a requested record does not exist. Callers use it
// to tell a missing row from an infrastructure failure.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and ensures the schema exists.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Profile reads a caller profile. A missing row yields a free-tier identity,
// not an error: the subscription webhook may simply not have created one yet.
func (s *Store) Profile(ctx context.Context, userID string) (models.CallerIdentity, error) {
	caller := models.CallerIdentity{UserID: userID, Tier: models.TierFree}
	var email sql.NullString
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT email, tier, monthly_used, monthly_limit, credits FROM caller_profiles WHERE user_id = ?`,
		userID).Scan(&email, &tier, &caller.MonthlyUsed, &caller.MonthlyLimit, &caller.Credits)
	if err == sql.ErrNoRows {
		return caller, nil
	}
	if err != nil {
		return caller, fmt.Errorf("failed to read profile: %w", err)
	}
	caller.Tier = models.Tier(tier)
	return caller, nil
}

// ApplyTierChange is the entry point for externally delivered subscription
// events. Monthly usage resets on every tier change, up or down.
func (s *Store) ApplyTierChange(ctx context.Context, userID string, tier models.Tier, monthlyLimit int) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO caller_profiles (user_id, tier, monthly_used, monthly_limit, updated_at)
VALUES (?, ?, 0, ?, CURRENT_TIMESTAMP)
ON CONFLICT(user_id) DO UPDATE SET
  tier = excluded.tier, monthly_used = 0, monthly_limit = excluded.monthly_limit,
  updated_at = CURRENT_TIMESTAMP`, userID, string(tier), monthlyLimit)
	if err != nil {
		return fmt.Errorf("failed to apply tier change: %w", err)
	}
	logrus.Infof("Applied tier change for %s: %s (limit %d)", userID, tier, monthlyLimit)
	return nil
}

// AddCredits records a purchased credit pack.
func (s *Store) AddCredits(ctx context.Context, userID string, n int) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO caller_profiles (user_id, credits, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(user_id) DO UPDATE SET credits = credits + excluded.credits, updated_at = CURRENT_TIMESTAMP`,
		userID, n)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	return nil
}

// IncrementMonthlyUsage consumes one monthly search. The WHERE clause keeps
// the counter from passing its limit when two requests race; zero rows
// affected means the quota was exhausted in the meantime.
func (s *Store) IncrementMonthlyUsage(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE caller_profiles SET monthly_used = monthly_used + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND monthly_used < monthly_limit`, userID)
	if err != nil {
		return fmt.Errorf("failed to increment monthly usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.RaceError{Kind: quota.KindSubscribed}
	}
	return nil
}

// DecrementCredit atomically consumes one purchased credit. The conditional
// UPDATE is what guarantees the balance can never go negative: if another
// request spent the last credit first, zero rows are affected and the caller
// must fail closed.
func (s *Store) DecrementCredit(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE caller_profiles SET credits = credits - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND credits > 0`, userID)
	if err != nil {
		return fmt.Errorf("failed to decrement credit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.RaceError{Kind: quota.KindCreditHolder}
	}
	return nil
}

// EmailSignup reads the lifetime search counter for an email-only caller,
// registering the email on first sight.
func (s *Store) EmailSignup(ctx context.Context, email string) (int, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO email_signups (email) VALUES (?) ON CONFLICT(email) DO NOTHING`, email); err != nil {
		return 0, fmt.Errorf("failed to register email signup: %w", err)
	}
	var used int
	if err := s.db.QueryRowContext(ctx,
		`SELECT searches_used FROM email_signups WHERE email = ?`, email).Scan(&used); err != nil {
		return 0, fmt.Errorf("failed to read email signup: %w", err)
	}
	return used, nil
}

// IncrementEmailSearches consumes one lifetime search for an email signup.
func (s *Store) IncrementEmailSearches(ctx context.Context, email string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE email_signups SET searches_used = searches_used + 1
		 WHERE email = ? AND searches_used < ?`, email, quota.EmailSignupLimit)
	if err != nil {
		return fmt.Errorf("failed to increment email searches: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.RaceError{Kind: quota.KindEmailSignup}
	}
	return nil
}

// AnonymousUsage reads the daily counter for an anonymous caller key.
func (s *Store) AnonymousUsage(ctx context.Context, key string, now time.Time) (int, time.Time, error) {
	var count int
	var resetDate string
	err := s.db.QueryRowContext(ctx,
		`SELECT daily_count, reset_date FROM anonymous_usage WHERE caller_key = ?`, key).
		Scan(&count, &resetDate)
	if err == sql.ErrNoRows {
		return 0, now, nil
	}
	if err != nil {
		return 0, now, fmt.Errorf("failed to read anonymous usage: %w", err)
	}
	reset, perr := time.Parse("2006-01-02", resetDate)
	if perr != nil {
		return 0, now, nil
	}
	return count, reset, nil
}

// IncrementAnonymousUsage consumes one daily search, resetting the counter
// when the stored reset date is a different calendar day. The cap check sits
// in the UPDATE so concurrent requests cannot both slip under the limit.
func (s *Store) IncrementAnonymousUsage(ctx context.Context, key string, now time.Time) error {
	today := now.Format("2006-01-02")
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO anonymous_usage (caller_key, daily_count, reset_date) VALUES (?, 0, ?)
ON CONFLICT(caller_key) DO UPDATE SET daily_count = 0, reset_date = excluded.reset_date
WHERE anonymous_usage.reset_date <> excluded.reset_date`, key, today); err != nil {
		return fmt.Errorf("failed to reset anonymous usage: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE anonymous_usage SET daily_count = daily_count + 1
		 WHERE caller_key = ? AND daily_count < ?`, key, quota.DailyFreeLimit)
	if err != nil {
		return fmt.Errorf("failed to increment anonymous usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &quota.RaceError{Kind: quota.KindAnonymous}
	}
	return nil
}

// CachedResults returns a live cache entry for a request hash, if any.
func (s *Store) CachedResults(ctx context.Context, hash string) ([]models.SearchResult, string, bool, error) {
	var searchID, raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT search_id, results FROM search_cache WHERE query_hash = ? AND expires_at > CURRENT_TIMESTAMP`,
		hash).Scan(&searchID, &raw)
	if err == sql.ErrNoRows {
		return nil, "", false, nil
	}
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to read cache: %w", err)
	}
	var results []models.SearchResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, "", false, fmt.Errorf("failed to decode cached results: %w", err)
	}
	return results, searchID, true, nil
}

// SaveResults stores a deduplicated result set under its request hash and
// returns the search identifier handed back to the client.
func (s *Store) SaveResults(ctx context.Context, hash, queryText, platformsCSV, timeFilter string, results []models.SearchResult, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	searchID := NewID()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO search_cache (query_hash, search_id, query_text, platforms, time_filter, results, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(query_hash) DO UPDATE SET
  search_id = excluded.search_id, results = excluded.results,
  created_at = CURRENT_TIMESTAMP, expires_at = excluded.expires_at`,
		hash, searchID, queryText, platformsCSV, timeFilter, string(raw),
		// CURRENT_TIMESTAMP text format, so the expiry comparison stays a
		// plain string comparison.
		time.Now().UTC().Add(ttl).Format("2006-01-02 15:04:05"))
	if err != nil {
		return "", fmt.Errorf("failed to save results: %w", err)
	}
	return searchID, nil
}

// SaveReport persists a generated report. Reports are immutable once written.
func (s *Store) SaveReport(ctx context.Context, report *models.Report) error {
	selected, err := json.Marshal(report.SelectedResults)
	if err != nil {
		return fmt.Errorf("failed to encode selected results: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO reports (id, user_id, search_id, report_type, selected_results, markdown, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.UserID, report.SearchID, string(report.ReportType),
		string(selected), report.Markdown, report.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Report loads a stored report by ID.
func (s *Store) Report(ctx context.Context, id string) (*models.Report, error) {
	var r models.Report
	var searchID sql.NullString
	var reportType, selected, createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, search_id, report_type, selected_results, markdown, created_at
		 FROM reports WHERE id = ?`, id).
		Scan(&r.ID, &r.UserID, &searchID, &reportType, &selected, &r.Markdown, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	r.SearchID = searchID.String
	r.ReportType = models.ReportType(reportType)
	if err := json.Unmarshal([]byte(selected), &r.SelectedResults); err != nil {
		return nil, fmt.Errorf("failed to decode selected results: %w", err)
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		r.CreatedAt = t
	}
	return &r, nil
}

// PurgeExpired removes dead cache rows and anonymous counters that have not
// been touched since before yesterday. Run from the scheduler.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_cache WHERE expires_at <= CURRENT_TIMESTAMP`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	purged, _ := res.RowsAffected()

	cutoff := now.AddDate(0, 0, -2).Format("2006-01-02")
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM anonymous_usage WHERE reset_date < ?`, cutoff); err != nil {
		return purged, fmt.Errorf("failed to sweep anonymous counters: %w", err)
	}
	return purged, nil
}

// NewID returns a random 128-bit hex identifier.
func NewID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to a
		// timestamp so we still return something unique enough.
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
