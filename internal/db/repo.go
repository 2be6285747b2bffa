package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// querier is the subset shared by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ═══════════════════════════════════════════════════════════════
// USERS AND TOKENS
// ═══════════════════════════════════════════════════════════════

// UpsertUser inserts the user or overwrites every column of the existing row
func (tx *Tx) UpsertUser(ctx context.Context, u *User) error {
	return upsertUser(ctx, tx.tx, u)
}

// UpsertUser inserts the user or overwrites every column of the existing row
func (d *DB) UpsertUser(ctx context.Context, u *User) error {
	return upsertUser(ctx, d.Pool(), u)
}

func upsertUser(ctx context.Context, q querier, u *User) error {
	_, err := q.ExecContext(ctx, `INSERT INTO users (id, login, name, avatar_url)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		login = excluded.login, name = excluded.name, avatar_url = excluded.avatar_url`,
		u.ID, u.Login, u.Name, u.AvatarURL)
	return wrap("upsert user", err)
}

// GetUser returns the user with the given GitHub id
func (d *DB) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	err := d.Pool().QueryRowContext(ctx, "SELECT id, login, name, avatar_url FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Login, &u.Name, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("get user", err)
	}
	return &u, nil
}

// InsertToken appends token to the credential log and returns its row id.
// A (token, user) pair that was already logged keeps its original row.
func (tx *Tx) InsertToken(ctx context.Context, token string, userID *int64) (int64, error) {
	return insertToken(ctx, tx.tx, token, userID)
}

// InsertToken appends token to the credential log and returns its row id
func (d *DB) InsertToken(ctx context.Context, token string, userID *int64) (int64, error) {
	return insertToken(ctx, d.Pool(), token, userID)
}

func insertToken(ctx context.Context, q querier, token string, userID *int64) (int64, error) {
	if userID == nil {
		// NULL never conflicts with UNIQUE(token, user_id), so orphans always append
		result, err := q.ExecContext(ctx, "INSERT INTO tokens (token, user_id, created_at) VALUES (?, NULL, ?)",
			token, time.Now().Unix())
		if err != nil {
			return 0, wrap("insert token", err)
		}
		id, err := result.LastInsertId()
		return id, wrap("insert token", err)
	}

	if _, err := q.ExecContext(ctx, `INSERT INTO tokens (token, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(token, user_id) DO NOTHING`, token, *userID, time.Now().Unix()); err != nil {
		return 0, wrap("insert token", err)
	}

	var id int64
	err := q.QueryRowContext(ctx, "SELECT id FROM tokens WHERE token = ? AND user_id = ?", token, *userID).Scan(&id)
	return id, wrap("insert token", err)
}

// ActivateToken points the session at the given token row
func (tx *Tx) ActivateToken(ctx context.Context, tokenID int64) error {
	return activateToken(ctx, tx.tx, tokenID)
}

// ActivateToken points the session at the given token row
func (d *DB) ActivateToken(ctx context.Context, tokenID int64) error {
	return activateToken(ctx, d.Pool(), tokenID)
}

func activateToken(ctx context.Context, q querier, tokenID int64) error {
	_, err := q.ExecContext(ctx, `INSERT INTO session (id, token_id, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET token_id = excluded.token_id, updated_at = excluded.updated_at`,
		tokenID, time.Now().Unix())
	return wrap("activate token", err)
}

// ActiveToken returns the token row the session points at, or ErrNotFound
func (d *DB) ActiveToken(ctx context.Context) (*Token, error) {
	var (
		t         Token
		userID    sql.NullInt64
		createdAt int64
	)
	err := d.Pool().QueryRowContext(ctx, `SELECT t.id, t.token, t.user_id, t.created_at
		FROM session s
		JOIN tokens t ON t.id = s.token_id
		WHERE s.id = 1`).Scan(&t.ID, &t.Token, &userID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("active token", err)
	}
	if userID.Valid {
		t.UserID = &userID.Int64
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

// ActiveUser follows session -> token -> user. A token without a user, or a
// user row that does not exist, yields ErrNotFound.
func (d *DB) ActiveUser(ctx context.Context) (*User, error) {
	var u User
	err := d.Pool().QueryRowContext(ctx, `SELECT u.id, u.login, u.name, u.avatar_url
		FROM session s
		JOIN tokens t ON t.id = s.token_id
		JOIN users u ON u.id = t.user_id
		WHERE s.id = 1`).Scan(&u.ID, &u.Login, &u.Name, &u.AvatarURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap("active user", err)
	}
	return &u, nil
}

// ClearSession drops the active session. The token log is kept.
func (d *DB) ClearSession(ctx context.Context) error {
	_, err := d.Pool().ExecContext(ctx, "DELETE FROM session WHERE id = 1")
	return wrap("clear session", err)
}

// ListTokens returns the credential log, newest first
func (d *DB) ListTokens(ctx context.Context) ([]Token, error) {
	rows, err := d.Pool().QueryContext(ctx, "SELECT id, token, user_id, created_at FROM tokens ORDER BY id DESC")
	if err != nil {
		return nil, wrap("list tokens", err)
	}
	defer rows.Close()

	var tokens []Token
	for rows.Next() {
		var (
			t         Token
			userID    sql.NullInt64
			createdAt int64
		)
		if err := rows.Scan(&t.ID, &t.Token, &userID, &createdAt); err != nil {
			return nil, wrap("list tokens", err)
		}
		if userID.Valid {
			id := userID.Int64
			t.UserID = &id
		}
		t.CreatedAt = time.Unix(createdAt, 0).UTC()
		tokens = append(tokens, t)
	}
	return tokens, wrap("list tokens", rows.Err())
}

// ═══════════════════════════════════════════════════════════════
// PULL REQUESTS
// ═══════════════════════════════════════════════════════════════

// UpsertPullRequest stores the pull request as an issue plus its pull request
// refinement and links it to userID, all in one transaction. last_viewed is
// preserved across updates.
func (d *DB) UpsertPullRequest(ctx context.Context, userID int64, pr *PullRequest) error {
	return d.WithTx(ctx, func(tx *Tx) error {
		return tx.UpsertPullRequest(ctx, userID, pr)
	})
}

// UpsertPullRequest is UpsertPullRequest inside an existing transaction
func (tx *Tx) UpsertPullRequest(ctx context.Context, userID int64, pr *PullRequest) error {
	q := tx.tx
	_, err := q.ExecContext(ctx, `INSERT INTO issues
		(id, number, title, author, author_id, url, repo_owner, repo_name, state,
		created_at, updated_at, closed_at, is_pull_request)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, TRUE)
		ON CONFLICT(id) DO UPDATE SET
		number = excluded.number, title = excluded.title, author = excluded.author,
		author_id = excluded.author_id, url = excluded.url, repo_owner = excluded.repo_owner,
		repo_name = excluded.repo_name, state = excluded.state, created_at = excluded.created_at,
		updated_at = excluded.updated_at, closed_at = excluded.closed_at, is_pull_request = TRUE`,
		pr.ID, pr.Number, pr.Title, pr.Author, pr.AuthorID, pr.URL, pr.RepoOwner, pr.RepoName, pr.State,
		pr.CreatedAt.Unix(), pr.UpdatedAt.Unix(), nullUnix(pr.ClosedAt))
	if err != nil {
		return wrap("upsert issue", err)
	}

	_, err = q.ExecContext(ctx, `INSERT INTO pull_requests (id, is_draft, review_decision, merged_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		is_draft = excluded.is_draft, review_decision = excluded.review_decision, merged_at = excluded.merged_at`,
		pr.ID, pr.IsDraft, pr.ReviewDecision, nullUnix(pr.MergedAt))
	if err != nil {
		return wrap("upsert pull request", err)
	}

	_, err = q.ExecContext(ctx, "INSERT OR IGNORE INTO user_issues (user_id, issue_id) VALUES (?, ?)", userID, pr.ID)
	return wrap("link user issue", err)
}

// ListUserPullRequests returns the pull requests linked to userID, most
// recently updated first
func (d *DB) ListUserPullRequests(ctx context.Context, userID int64) ([]PullRequest, error) {
	rows, err := d.Pool().QueryContext(ctx, `SELECT i.id, i.number, i.title, i.author, i.author_id, i.url,
		i.repo_owner, i.repo_name, i.state, i.created_at, i.updated_at, i.closed_at, i.last_viewed,
		p.is_draft, p.review_decision, p.merged_at
		FROM user_issues ui
		JOIN issues i ON i.id = ui.issue_id
		JOIN pull_requests p ON p.id = i.id
		WHERE ui.user_id = ?
		ORDER BY i.updated_at DESC, i.id DESC`, userID)
	if err != nil {
		return nil, wrap("list pull requests", err)
	}
	defer rows.Close()

	var prs []PullRequest
	for rows.Next() {
		var (
			pr                             PullRequest
			createdAt, updatedAt           int64
			closedAt, lastViewed, mergedAt sql.NullInt64
		)
		err := rows.Scan(&pr.ID, &pr.Number, &pr.Title, &pr.Author, &pr.AuthorID, &pr.URL,
			&pr.RepoOwner, &pr.RepoName, &pr.State, &createdAt, &updatedAt, &closedAt, &lastViewed,
			&pr.IsDraft, &pr.ReviewDecision, &mergedAt)
		if err != nil {
			return nil, wrap("list pull requests", err)
		}
		pr.IsPullRequest = true
		pr.CreatedAt = time.Unix(createdAt, 0).UTC()
		pr.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		pr.ClosedAt = timeFromUnix(closedAt)
		pr.LastViewed = timeFromUnix(lastViewed)
		pr.MergedAt = timeFromUnix(mergedAt)
		prs = append(prs, pr)
	}
	return prs, wrap("list pull requests", rows.Err())
}

// MarkViewed records when the issue was last looked at
func (d *DB) MarkViewed(ctx context.Context, issueID int64, at time.Time) error {
	result, err := d.Pool().ExecContext(ctx, "UPDATE issues SET last_viewed = ? WHERE id = ?", at.Unix(), issueID)
	if err != nil {
		return wrap("mark viewed", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return wrap("mark viewed", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════
// REFRESH HINTS
// ═══════════════════════════════════════════════════════════════

// SetRefreshAt records when the user's data should next be refreshed
func (d *DB) SetRefreshAt(ctx context.Context, userID int64, at time.Time) error {
	_, err := d.Pool().ExecContext(ctx, `INSERT INTO user_refresh (id, refresh_at) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET refresh_at = excluded.refresh_at`, userID, at.Unix())
	return wrap("set refresh", err)
}

// GetRefreshAt returns the refresh hint for userID; nil when none is recorded
func (d *DB) GetRefreshAt(ctx context.Context, userID int64) (*time.Time, error) {
	var at sql.NullInt64
	err := d.Pool().QueryRowContext(ctx, "SELECT refresh_at FROM user_refresh WHERE id = ?", userID).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get refresh", err)
	}
	return timeFromUnix(at), nil
}

// ═══════════════════════════════════════════════════════════════
// SETTINGS
// ═══════════════════════════════════════════════════════════════

// GetSetting returns the value stored under key, or ErrNotFound
func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.Pool().QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, wrap("get setting", err)
}

// SetSetting stores value under key, replacing any previous value
func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.Pool().ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return wrap("set setting", err)
}

// DeleteSetting removes key. Deleting a missing key is not an error.
func (d *DB) DeleteSetting(ctx context.Context, key string) error {
	_, err := d.Pool().ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return wrap("delete setting", err)
}

// ListSettings returns all settings ordered by key
func (d *DB) ListSettings(ctx context.Context) ([]Setting, error) {
	rows, err := d.Pool().QueryContext(ctx, "SELECT key, value FROM settings ORDER BY key")
	if err != nil {
		return nil, wrap("list settings", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, wrap("list settings", err)
		}
		settings = append(settings, s)
	}
	return settings, wrap("list settings", rows.Err())
}

// Helper functions

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func timeFromUnix(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}
