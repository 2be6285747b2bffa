package db

import (
	"time"
)

// User represents a GitHub account
type User struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

// Token is one immutable row of the credential log
type Token struct {
	ID        int64     `json:"id"`
	Token     string    `json:"-"`
	UserID    *int64    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Issue represents a cached GitHub issue
type Issue struct {
	ID            int64      `json:"id"`
	Number        int        `json:"number"`
	Title         string     `json:"title"`
	Author        string     `json:"author"`
	AuthorID      int64      `json:"author_id"`
	URL           string     `json:"url"`
	RepoOwner     string     `json:"repo_owner"`
	RepoName      string     `json:"repo_name"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
	IsPullRequest bool       `json:"is_pull_request"`
	LastViewed    *time.Time `json:"last_viewed,omitempty"`
}

// PullRequest is an Issue refined with pull request fields
type PullRequest struct {
	Issue
	IsDraft        bool       `json:"is_draft"`
	ReviewDecision string     `json:"review_decision"`
	MergedAt       *time.Time `json:"merged_at,omitempty"`
}

// Setting is a process-wide key/value pair
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Stats returns database statistics
type Stats struct {
	Path          string `json:"path"`
	Size          int64  `json:"size_bytes"`
	Users         int    `json:"users"`
	Tokens        int    `json:"tokens"`
	Issues        int    `json:"issues"`
	PullRequests  int    `json:"pull_requests"`
	Settings      int    `json:"settings"`
	HasSession    bool   `json:"has_session"`
	SchemaVersion int    `json:"schema_version"`
}
