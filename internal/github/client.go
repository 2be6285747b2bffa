package github

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v62/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/abysmo/ghd/internal/db"
)

const (
	DefaultAPIURL   = "https://api.github.com/"
	DefaultTimeout  = 30 * time.Second
	DefaultPerPage  = 50
	DefaultMaxPages = 10
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	APIURL   string
	Timeout  time.Duration
	PerPage  int
	MaxPages int
}

// Client talks to the GitHub REST API on behalf of whichever token the caller
// passes in. It holds no credential itself.
type Client struct {
	baseURL  *url.URL
	timeout  time.Duration
	perPage  int
	maxPages int
	logger   *zap.Logger
}

// NewClient creates a new GitHub client
func NewClient(opts Options, logger *zap.Logger) (*Client, error) {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if !strings.HasSuffix(opts.APIURL, "/") {
		opts.APIURL += "/"
	}
	base, err := url.Parse(opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", opts.APIURL, err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:  base,
		timeout:  opts.Timeout,
		perPage:  opts.PerPage,
		maxPages: opts.MaxPages,
		logger:   logger,
	}, nil
}

// Timeout is the per-call deadline applied by callers of this client.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) api(ctx context.Context, token string) *gogithub.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = c.timeout

	gh := gogithub.NewClient(hc)
	gh.BaseURL = c.baseURL
	gh.UserAgent = "ghd"
	return gh
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("github: unexpected status %d: %s", e.StatusCode, e.Message)
}

func classify(resp *gogithub.Response, err error) error {
	if resp != nil && resp.Response != nil && (resp.StatusCode < 200 || resp.StatusCode > 299) {
		se := &StatusError{StatusCode: resp.StatusCode}
		var (
			er *gogithub.ErrorResponse
			rl *gogithub.RateLimitError
		)
		switch {
		case errors.As(err, &er):
			se.Message = er.Message
		case errors.As(err, &rl):
			se.Message = rl.Message
		}
		return se
	}
	return fmt.Errorf("github: %w", err)
}

// Whoami returns the account the token belongs to (GET /user).
func (c *Client) Whoami(ctx context.Context, token string) (*db.User, error) {
	c.logger.Debug("fetching authenticated user", zap.String("api", c.baseURL.String()))

	u, resp, err := c.api(ctx, token).Users.Get(ctx, "")
	if err != nil {
		err = classify(resp, err)
		c.logger.Debug("identity request failed", zap.Error(err))
		return nil, err
	}

	return &db.User{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Name:      u.GetName(),
		AvatarURL: u.GetAvatarURL(),
	}, nil
}

// PullRequestQuery is the search used to list a user's open pull requests.
func PullRequestQuery(login string) string {
	return fmt.Sprintf("is:pr author:%s is:open", login)
}

// ListPullRequests returns the open pull requests authored by login, walking
// at most MaxPages pages of search results.
func (c *Client) ListPullRequests(ctx context.Context, token, login string) ([]db.PullRequest, error) {
	api := c.api(ctx, token)
	query := PullRequestQuery(login)
	opts := &gogithub.SearchOptions{
		Sort:        "updated",
		Order:       "desc",
		ListOptions: gogithub.ListOptions{PerPage: c.perPage},
	}

	var prs []db.PullRequest
	for page := 0; page < c.maxPages; page++ {
		result, resp, err := api.Search.Issues(ctx, query, opts)
		if err != nil {
			return nil, classify(resp, err)
		}

		for _, issue := range result.Issues {
			prs = append(prs, toPullRequest(issue))
		}
		c.logger.Debug("fetched pull request page",
			zap.String("login", login),
			zap.Int("page", page+1),
			zap.Int("count", len(result.Issues)),
			zap.Int("total", result.GetTotal()))

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return prs, nil
}

func toPullRequest(issue *gogithub.Issue) db.PullRequest {
	owner, name := repoFromURL(issue.GetRepositoryURL())
	pr := db.PullRequest{
		Issue: db.Issue{
			ID:            issue.GetID(),
			Number:        issue.GetNumber(),
			Title:         issue.GetTitle(),
			Author:        issue.GetUser().GetLogin(),
			AuthorID:      issue.GetUser().GetID(),
			URL:           issue.GetHTMLURL(),
			RepoOwner:     owner,
			RepoName:      name,
			State:         issue.GetState(),
			CreatedAt:     issue.GetCreatedAt().Time,
			UpdatedAt:     issue.GetUpdatedAt().Time,
			IsPullRequest: true,
		},
		IsDraft: issue.GetDraft(),
	}
	if issue.ClosedAt != nil {
		t := issue.ClosedAt.Time
		pr.ClosedAt = &t
	}
	return pr
}

// repoFromURL extracts owner and name from an API repository URL such as
// https://api.github.com/repos/acme/widgets.
func repoFromURL(raw string) (owner, name string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "repos" {
			return parts[i+1], parts[i+2]
		}
	}
	return "", ""
}
