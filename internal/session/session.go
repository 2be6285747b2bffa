package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/abysmo/ghd/internal/db"
	"github.com/abysmo/ghd/internal/logging"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultRefreshInterval = 15 * time.Minute
)

// Remote is the GitHub API as seen by the session. *github.Client satisfies it.
type Remote interface {
	Whoami(ctx context.Context, token string) (*db.User, error)
	ListPullRequests(ctx context.Context, token, login string) ([]db.PullRequest, error)
}

// Manager ties a credential to a GitHub identity and keeps the local cache
// for that identity.
type Manager struct {
	store  *db.DB
	remote Remote
	logger *zap.Logger

	timeout         time.Duration
	refreshInterval time.Duration
	now             func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithTimeout bounds every remote call
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithRefreshInterval sets how far ahead a sync schedules the next refresh hint
func WithRefreshInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.refreshInterval = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// New creates a session manager over a connected store
func New(store *db.DB, remote Remote, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		store:           store,
		remote:          remote,
		logger:          logger,
		timeout:         DefaultTimeout,
		refreshInterval: DefaultRefreshInterval,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Identify asks GitHub who owns token. Nothing is stored.
func (m *Manager) Identify(ctx context.Context, token string) (*db.User, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	user, err := m.remote.Whoami(ctx, token)
	if err != nil {
		m.logger.Debug("identify failed", logging.Token(token), zap.Error(err))
		return nil, remoteError(err)
	}
	return user, nil
}

// SetActiveToken validates token against GitHub and, in one transaction,
// stores the user, logs the token and makes it the active session.
func (m *Manager) SetActiveToken(ctx context.Context, token string) error {
	user, err := m.Identify(ctx, token)
	if err != nil {
		return err
	}

	err = m.store.WithTx(ctx, func(tx *db.Tx) error {
		if err := tx.UpsertUser(ctx, user); err != nil {
			return err
		}
		tokenID, err := tx.InsertToken(ctx, token, &user.ID)
		if err != nil {
			return err
		}
		return tx.ActivateToken(ctx, tokenID)
	})
	if err != nil {
		return err
	}

	m.logger.Info("active token set", zap.String("login", user.Login), zap.Int64("user_id", user.ID), logging.Token(token))
	return nil
}

// GetActiveToken returns the credential of the active session
func (m *Manager) GetActiveToken(ctx context.Context) (string, error) {
	tok, err := m.store.ActiveToken(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// GetCurrentUser returns the user bound to the active token
func (m *Manager) GetCurrentUser(ctx context.Context) (*db.User, error) {
	user, err := m.store.ActiveUser(ctx)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrUserNotSet
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ClearActiveToken ends the session. The token log is kept.
func (m *Manager) ClearActiveToken(ctx context.Context) error {
	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	m.logger.Info("active token cleared")
	return nil
}

// FetchPullRequests lists the open pull requests authored by the owner of
// token. Nothing is stored.
func (m *Manager) FetchPullRequests(ctx context.Context, token string) ([]db.PullRequest, error) {
	user, err := m.Identify(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.listPullRequests(ctx, token, user.Login)
}

func (m *Manager) listPullRequests(ctx context.Context, token, login string) ([]db.PullRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	prs, err := m.remote.ListPullRequests(ctx, token, login)
	if err != nil {
		m.logger.Debug("pull request listing failed", zap.String("login", login), zap.Error(err))
		return nil, remoteError(err)
	}
	return prs, nil
}

// SyncPullRequests fetches the active user's open pull requests into the
// cache and records when the next refresh is due. It returns the number of
// pull requests stored.
func (m *Manager) SyncPullRequests(ctx context.Context) (int, error) {
	token, err := m.GetActiveToken(ctx)
	if err != nil {
		return 0, err
	}
	user, err := m.GetCurrentUser(ctx)
	if err != nil {
		return 0, err
	}

	prs, err := m.listPullRequests(ctx, token, user.Login)
	if err != nil {
		return 0, err
	}

	err = m.store.WithTx(ctx, func(tx *db.Tx) error {
		for i := range prs {
			if err := tx.UpsertPullRequest(ctx, user.ID, &prs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	next := m.now().Add(m.refreshInterval)
	if err := m.store.SetRefreshAt(ctx, user.ID, next); err != nil {
		return 0, err
	}

	m.logger.Info("pull requests synced", zap.String("login", user.Login), zap.Int("count", len(prs)), zap.Time("next_refresh", next))
	return len(prs), nil
}

// CachedPullRequests returns the active user's stored pull requests, most
// recently updated first
func (m *Manager) CachedPullRequests(ctx context.Context) ([]db.PullRequest, error) {
	user, err := m.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.ListUserPullRequests(ctx, user.ID)
}

// NextRefresh returns the refresh hint recorded for the active user, nil when
// no sync has run yet
func (m *Manager) NextRefresh(ctx context.Context) (*time.Time, error) {
	user, err := m.GetCurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return m.store.GetRefreshAt(ctx, user.ID)
}

// MarkViewed records that the user opened a cached pull request or issue
func (m *Manager) MarkViewed(ctx context.Context, issueID int64) error {
	return m.store.MarkViewed(ctx, issueID, m.now())
}
