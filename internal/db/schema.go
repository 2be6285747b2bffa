package db

// Schema version for the on-disk layout.
// Version 1: users, tokens, session, issues, pull_requests, user_issues, user_refresh, settings
const SchemaVersion = 1

// Schema contains the database schema. It is applied once, when the database
// file is first created, and never altered in place.
const Schema = `
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key         TEXT PRIMARY KEY NOT NULL,
    value       TEXT NOT NULL
);

-- ═══════════════════════════════════════════════════════════════
-- IDENTITY
-- ═══════════════════════════════════════════════════════════════

CREATE TABLE IF NOT EXISTS users (
    id          INTEGER PRIMARY KEY NOT NULL,
    login       TEXT UNIQUE NOT NULL,
    avatar_url  TEXT NOT NULL,
    name        TEXT NOT NULL
);

-- Append-only log of every credential that was ever activated.
CREATE TABLE IF NOT EXISTS tokens (
    id          INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL,
    token       TEXT NOT NULL,
    user_id     INTEGER REFERENCES users (id),
    created_at  INTEGER NOT NULL DEFAULT (CAST(strftime('%s', 'now') AS INTEGER)),
    UNIQUE (token, user_id)
);

-- At most one row: the active credential.
CREATE TABLE IF NOT EXISTS session (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    token_id    INTEGER NOT NULL REFERENCES tokens (id),
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS user_refresh (
    id          INTEGER PRIMARY KEY NOT NULL,
    refresh_at  INTEGER,
    FOREIGN KEY (id) REFERENCES users (id)
);

-- ═══════════════════════════════════════════════════════════════
-- ISSUES AND PULL REQUESTS
-- ═══════════════════════════════════════════════════════════════

CREATE TABLE IF NOT EXISTS issues (
    id              INTEGER PRIMARY KEY NOT NULL,
    number          INTEGER NOT NULL,
    title           TEXT NOT NULL,
    author          TEXT NOT NULL,
    author_id       INTEGER NOT NULL,
    url             TEXT NOT NULL,
    repo_owner      TEXT NOT NULL,
    repo_name       TEXT NOT NULL,
    state           TEXT NOT NULL,
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,
    closed_at       INTEGER,
    is_pull_request BOOL NOT NULL,
    last_viewed     INTEGER
);

CREATE TABLE IF NOT EXISTS pull_requests (
    id              INTEGER PRIMARY KEY NOT NULL,
    is_draft        BOOL NOT NULL,
    review_decision TEXT NOT NULL,
    merged_at       INTEGER,
    FOREIGN KEY (id) REFERENCES issues (id)
);

CREATE TABLE IF NOT EXISTS user_issues (
    user_id     INTEGER NOT NULL,
    issue_id    INTEGER NOT NULL,
    PRIMARY KEY (user_id, issue_id),
    FOREIGN KEY (user_id) REFERENCES users (id),
    FOREIGN KEY (issue_id) REFERENCES issues (id)
);

CREATE INDEX IF NOT EXISTS idx_issues_updated ON issues(updated_at);
CREATE INDEX IF NOT EXISTS idx_issues_repo ON issues(repo_owner, repo_name);
CREATE INDEX IF NOT EXISTS idx_user_issues_issue ON user_issues(issue_id);
`
