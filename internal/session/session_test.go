package session

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abysmo/ghd/internal/db"
	"github.com/abysmo/ghd/internal/github"
)

type fakeRemote struct {
	users       map[string]*db.User
	prs         map[string][]db.PullRequest
	err         error
	whoamiCalls int
	listLogins  []string
	deadlines   []bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		users: map[string]*db.User{
			"abc123": {ID: 42, Login: "octo", Name: "Octo Cat", AvatarURL: "https://avatars.githubusercontent.com/u/42"},
		},
		prs: map[string][]db.PullRequest{},
	}
}

func (f *fakeRemote) Whoami(ctx context.Context, token string) (*db.User, error) {
	f.whoamiCalls++
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[token]
	if !ok {
		return nil, &github.StatusError{StatusCode: http.StatusUnauthorized, Message: "Bad credentials"}
	}
	copied := *u
	return &copied, nil
}

func (f *fakeRemote) ListPullRequests(ctx context.Context, token, login string) ([]db.PullRequest, error) {
	f.listLogins = append(f.listLogins, login)
	if f.err != nil {
		return nil, f.err
	}
	return append([]db.PullRequest(nil), f.prs[login]...), nil
}

func setupManager(t *testing.T, remote Remote, opts ...Option) (*Manager, *db.DB) {
	t.Helper()
	ctx := context.Background()

	store := db.New(filepath.Join(t.TempDir(), "ghd.db"))
	require.NoError(t, store.EnsureSchema(ctx))
	conn, err := store.Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return New(conn, remote, zaptest.NewLogger(t), opts...), conn
}

func pr(id int64, number int, updated time.Time) db.PullRequest {
	return db.PullRequest{
		Issue: db.Issue{
			ID:            id,
			Number:        number,
			Title:         "Add feature",
			Author:        "octo",
			AuthorID:      42,
			URL:           "https://github.com/acme/widgets/pull/1",
			RepoOwner:     "acme",
			RepoName:      "widgets",
			State:         "open",
			CreatedAt:     updated.Add(-time.Hour),
			UpdatedAt:     updated,
			IsPullRequest: true,
		},
	}
}

func TestIdentify(t *testing.T) {
	remote := newFakeRemote()
	m, conn := setupManager(t, remote)
	ctx := context.Background()

	u, err := m.Identify(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, &db.User{ID: 42, Login: "octo", Name: "Octo Cat", AvatarURL: "https://avatars.githubusercontent.com/u/42"}, u)
	assert.Equal(t, []bool{true}, remote.deadlines, "remote call runs under a deadline")

	stats, err := conn.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Users, "identify has no local side effects")
	assert.Equal(t, 0, stats.Tokens)
}

func TestIdentify_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		status  int
		unknown bool
	}{
		{"forbidden", &github.StatusError{StatusCode: http.StatusForbidden}, ErrBadCredential, 0, false},
		{"unauthorized", &github.StatusError{StatusCode: http.StatusUnauthorized}, ErrBadCredential, 0, false},
		{"server error", &github.StatusError{StatusCode: http.StatusInternalServerError}, ErrUnknown, 500, true},
		{"not found", &github.StatusError{StatusCode: http.StatusNotFound}, ErrUnknown, 404, true},
		{"transport", errors.New("connection refused"), ErrUnknown, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			remote.err = tt.err
			m, _ := setupManager(t, remote)

			_, err := m.Identify(context.Background(), "abc123")
			require.ErrorIs(t, err, tt.want)

			var ue *UnknownError
			assert.Equal(t, tt.unknown, errors.As(err, &ue))
			if tt.unknown {
				assert.Equal(t, tt.status, ue.StatusCode)
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestNoSession(t *testing.T) {
	m, _ := setupManager(t, newFakeRemote())
	ctx := context.Background()

	_, err := m.GetActiveToken(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = m.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, ErrUserNotSet)

	_, err = m.CachedPullRequests(ctx)
	assert.ErrorIs(t, err, ErrUserNotSet)

	_, err = m.SyncPullRequests(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSetActiveToken(t *testing.T) {
	m, conn := setupManager(t, newFakeRemote())
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))

	token, err := m.GetActiveToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	u, err := m.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "octo", u.Login)
	assert.Equal(t, "Octo Cat", u.Name)

	tokens, err := conn.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.NotNil(t, tokens[0].UserID)
	assert.Equal(t, int64(42), *tokens[0].UserID)
}

func TestSetActiveToken_LatestWins(t *testing.T) {
	remote := newFakeRemote()
	remote.users["def456"] = &db.User{ID: 7, Login: "hubot", Name: "Hubot", AvatarURL: "https://a/7"}
	m, conn := setupManager(t, remote)
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))
	require.NoError(t, m.SetActiveToken(ctx, "def456"))

	token, err := m.GetActiveToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "def456", token)
	u, err := m.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hubot", u.Login)

	// switching back reuses the logged row and re-activates it
	require.NoError(t, m.SetActiveToken(ctx, "abc123"))
	token, err = m.GetActiveToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	tokens, err := conn.ListTokens(ctx)
	require.NoError(t, err)
	assert.Len(t, tokens, 2)
}

func TestSetActiveToken_ProfileOverwritten(t *testing.T) {
	remote := newFakeRemote()
	m, conn := setupManager(t, remote)
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))

	remote.users["ghp_new"] = &db.User{ID: 42, Login: "octo", Name: "Octo Renamed", AvatarURL: "https://a/42-new"}
	require.NoError(t, m.SetActiveToken(ctx, "ghp_new"))

	u, err := m.GetCurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Octo Renamed", u.Name)
	assert.Equal(t, "https://a/42-new", u.AvatarURL)

	stats, err := conn.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Users)
	assert.Equal(t, 2, stats.Tokens)
}

func TestSetActiveToken_BadCredentialKeepsSession(t *testing.T) {
	m, conn := setupManager(t, newFakeRemote())
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))
	err := m.SetActiveToken(ctx, "revoked")
	require.ErrorIs(t, err, ErrBadCredential)

	token, err := m.GetActiveToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc123", token)

	tokens, err := conn.ListTokens(ctx)
	require.NoError(t, err)
	assert.Len(t, tokens, 1, "rejected token is not logged")
}

func TestSetActiveToken_StorageFailureRollsBack(t *testing.T) {
	m, conn := setupManager(t, newFakeRemote())
	ctx := context.Background()

	_, err := conn.Pool().Exec("DROP TABLE session")
	require.NoError(t, err)

	err = m.SetActiveToken(ctx, "abc123")
	require.ErrorIs(t, err, db.ErrStorage)
	var se *db.StorageError
	require.True(t, errors.As(err, &se))

	_, err = conn.GetUser(ctx, 42)
	assert.ErrorIs(t, err, db.ErrNotFound, "user insert rolled back")
	tokens, err := conn.ListTokens(ctx)
	require.NoError(t, err)
	assert.Empty(t, tokens, "token insert rolled back")
}

func TestGetCurrentUser_TokenWithoutUser(t *testing.T) {
	m, conn := setupManager(t, newFakeRemote())
	ctx := context.Background()

	id, err := conn.InsertToken(ctx, "orphan", nil)
	require.NoError(t, err)
	require.NoError(t, conn.ActivateToken(ctx, id))

	token, err := m.GetActiveToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "orphan", token)

	_, err = m.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, ErrUserNotSet)
}

func TestClearActiveToken(t *testing.T) {
	m, conn := setupManager(t, newFakeRemote())
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))
	require.NoError(t, m.ClearActiveToken(ctx))
	require.NoError(t, m.ClearActiveToken(ctx))

	_, err := m.GetActiveToken(ctx)
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = m.GetCurrentUser(ctx)
	assert.ErrorIs(t, err, ErrUserNotSet)

	tokens, err := conn.ListTokens(ctx)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestFetchPullRequests(t *testing.T) {
	remote := newFakeRemote()
	now := time.Now().UTC().Truncate(time.Second)
	remote.prs["octo"] = []db.PullRequest{pr(1, 10, now), pr(2, 11, now.Add(-time.Hour))}
	m, conn := setupManager(t, remote)
	ctx := context.Background()

	prs, err := m.FetchPullRequests(ctx, "abc123")
	require.NoError(t, err)
	assert.Len(t, prs, 2)
	assert.Equal(t, []string{"octo"}, remote.listLogins)

	stats, err := conn.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Issues, "fetch does not write through")
	assert.Equal(t, 0, stats.Users)

	_, err = m.FetchPullRequests(ctx, "nope")
	assert.ErrorIs(t, err, ErrBadCredential)
	assert.Len(t, remote.listLogins, 1, "no listing after failed identify")
}

func TestSyncPullRequests(t *testing.T) {
	remote := newFakeRemote()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	remote.prs["octo"] = []db.PullRequest{pr(1, 10, now.Add(-time.Hour)), pr(2, 11, now)}
	m, _ := setupManager(t, remote,
		WithClock(func() time.Time { return now }),
		WithRefreshInterval(time.Hour))
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))

	next, err := m.NextRefresh(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	n, err := m.SyncPullRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cached, err := m.CachedPullRequests(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, int64(2), cached[0].ID)
	assert.Equal(t, "widgets", cached[0].RepoName)

	next, err = m.NextRefresh(ctx)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, now.Add(time.Hour), *next)

	// a second sync with one updated PR keeps a single row per PR
	updated := pr(1, 10, now.Add(time.Hour))
	updated.Title = "Add feature (v2)"
	remote.prs["octo"] = []db.PullRequest{updated}
	require.NoError(t, m.MarkViewed(ctx, 1))

	n, err = m.SyncPullRequests(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cached, err = m.CachedPullRequests(ctx)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "Add feature (v2)", cached[0].Title)
	require.NotNil(t, cached[0].LastViewed)
	assert.Equal(t, now, *cached[0].LastViewed)
}

func TestSyncPullRequests_RemoteFailure(t *testing.T) {
	remote := newFakeRemote()
	m, conn := setupManager(t, remote)
	ctx := context.Background()

	require.NoError(t, m.SetActiveToken(ctx, "abc123"))
	remote.err = &github.StatusError{StatusCode: http.StatusBadGateway}

	_, err := m.SyncPullRequests(ctx)
	var ue *UnknownError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusBadGateway, ue.StatusCode)

	at, err := conn.GetRefreshAt(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, at, "no refresh hint after a failed sync")
}

func TestMarkViewed_Unknown(t *testing.T) {
	m, _ := setupManager(t, newFakeRemote())
	assert.ErrorIs(t, m.MarkViewed(context.Background(), 999), db.ErrNotFound)
}
