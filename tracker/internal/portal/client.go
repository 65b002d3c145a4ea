// CLAUDE:SUMMARY Moodle portal client: cookie session with lazy login and one re-login, course and assignment page fetching, size-limited bodies.
// Package portal fetches course and assignment pages from a Moodle portal
// on behalf of one student account.
package portal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/hazyhaar/coursewatch/tracker/internal/course"
)

// ErrNoCredentials is returned when username or password is missing.
var ErrNoCredentials = errors.New("portal: credentials not configured")

// ErrLoginFailed is returned when the portal rejects the login.
var ErrLoginFailed = errors.New("portal: login failed")

// ErrSessionExpired is returned when a page still redirects to the login
// form right after a fresh login.
var ErrSessionExpired = errors.New("portal: session expired")

const loginPath = "/login/index.php"

// coursePageTTL bounds how long a course page fetched for its sections is
// reused for its assignment links.
const coursePageTTL = 2 * time.Minute

// Config configures the portal client.
type Config struct {
	BaseURL   string
	Username  string
	Password  string
	UserAgent string
	Timeout   time.Duration
	MaxBytes  int64
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "coursewatch/1.0"
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
}

// Client is a logged-in browsing session on the portal.
type Client struct {
	cfg    Config
	base   *url.URL
	client *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	loggedIn bool

	now     func() time.Time
	cacheMu sync.Mutex
	courses map[string]cachedPage
}

type cachedPage struct {
	body  string
	final *url.URL
	at    time.Time
}

// New creates a Client. The session is opened lazily on first use.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	cfg.defaults()
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("portal: invalid base url %q", cfg.BaseURL)
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("portal: cookie jar: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		base:    base,
		client:  &http.Client{Timeout: cfg.Timeout, Jar: jar},
		logger:  logger,
		now:     time.Now,
		courses: make(map[string]cachedPage),
	}, nil
}

// Login opens a session: it reads the login form, posts the credentials
// with the form's hidden fields, then checks that the dashboard is reachable.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loginLocked(ctx)
}

func (c *Client) loginLocked(ctx context.Context) error {
	c.loggedIn = false
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return ErrNoCredentials
	}
	loginURL := c.endpoint(loginPath)
	c.logger.Info("portal: login", "url", loginURL)

	body, _, err := c.do(ctx, http.MethodGet, loginURL, nil)
	if err != nil {
		return fmt.Errorf("portal: login page: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("portal: parse login page: %w", err)
	}
	form, ok := parseLoginForm(doc)
	if !ok {
		return fmt.Errorf("%w: login form not found", ErrLoginFailed)
	}
	action := loginURL
	if form.action != "" {
		action = c.resolve(form.action)
	}
	form.fields.Set("username", c.cfg.Username)
	form.fields.Set("password", c.cfg.Password)
	form.fields.Set("anchor", "")

	if _, _, err := c.do(ctx, http.MethodPost, action, form.fields); err != nil {
		return fmt.Errorf("portal: submit login: %w", err)
	}

	body, final, err := c.do(ctx, http.MethodGet, c.endpoint("/my/"), nil)
	if err != nil {
		return fmt.Errorf("portal: dashboard: %w", err)
	}
	if onLoginPage(final) {
		msg := "no specific error message found"
		if doc, err := html.Parse(strings.NewReader(body)); err == nil {
			msg = loginErrorText(doc)
		}
		return fmt.Errorf("%w: %s", ErrLoginFailed, msg)
	}
	c.loggedIn = true
	c.logger.Info("portal: login ok")
	return nil
}

// FetchCourseState scrapes the section layout of a course page. The page is
// kept for the FetchAssignmentPages call that follows in the same poll.
func (c *Client) FetchCourseState(ctx context.Context, e course.Entry) ([]course.Section, error) {
	body, final, err := c.get(ctx, e.URL)
	if err != nil {
		return nil, fmt.Errorf("portal: course %s: %w", e.Code, err)
	}
	c.cacheMu.Lock()
	c.courses[e.URL] = cachedPage{body: body, final: final, at: c.now()}
	c.cacheMu.Unlock()

	sections, err := ParseCourse(body)
	if err != nil {
		return nil, fmt.Errorf("portal: course %s: %w", e.Code, err)
	}
	c.logger.Debug("portal: course scraped", "course", e.Code, "sections", len(sections))
	return sections, nil
}

// FetchAssignmentPages downloads every assignment page linked from a course
// page, reusing the page FetchCourseState just read when there is one. A
// page that fails to download is returned with Err set and no HTML.
func (c *Client) FetchAssignmentPages(ctx context.Context, e course.Entry) ([]Page, error) {
	body, final, err := c.takeCoursePage(ctx, e.URL)
	if err != nil {
		return nil, fmt.Errorf("portal: course %s: %w", e.Code, err)
	}
	links, err := ParseAssignmentLinks(body, final)
	if err != nil {
		return nil, fmt.Errorf("portal: course %s: %w", e.Code, err)
	}
	c.logger.Debug("portal: assignment links", "course", e.Code, "count", len(links))

	pages := make([]Page, 0, len(links))
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, _, _ := strings.Cut(link, "#")
		body, _, err := c.get(ctx, target)
		if err != nil {
			pages = append(pages, Page{URL: link, Err: err})
			continue
		}
		pages = append(pages, Page{URL: link, HTML: body})
	}
	return pages, nil
}

// takeCoursePage takes the cached copy of a course page, or fetches it.
func (c *Client) takeCoursePage(ctx context.Context, rawURL string) (string, *url.URL, error) {
	c.cacheMu.Lock()
	cp, ok := c.courses[rawURL]
	delete(c.courses, rawURL)
	c.cacheMu.Unlock()
	if ok && c.now().Sub(cp.at) < coursePageTTL {
		return cp.body, cp.final, nil
	}
	return c.get(ctx, rawURL)
}

// get fetches an authenticated page, logging in first when needed and once
// more if the portal bounces the request to the login form.
func (c *Client) get(ctx context.Context, rawURL string) (string, *url.URL, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loggedIn {
		if err := c.loginLocked(ctx); err != nil {
			return "", nil, err
		}
	}
	target := c.resolve(rawURL)
	for attempt := 0; attempt < 2; attempt++ {
		body, final, err := c.do(ctx, http.MethodGet, target, nil)
		if err != nil {
			return "", nil, err
		}
		if !onLoginPage(final) {
			return body, final, nil
		}
		if attempt == 0 {
			c.logger.Info("portal: session expired, logging in again")
			if err := c.loginLocked(ctx); err != nil {
				return "", nil, err
			}
		}
	}
	c.loggedIn = false
	return "", nil, ErrSessionExpired
}

// do performs one request and returns the size-limited body and the final
// URL after redirects.
func (c *Client) do(ctx context.Context, method, target string, form url.Values) (string, *url.URL, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Origin", c.base.Scheme+"://"+c.base.Host)
		req.Header.Set("Referer", c.endpoint(loginPath))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("%s %s: HTTP %d", method, target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBytes))
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	return string(data), resp.Request.URL, nil
}

// endpoint joins a portal path onto the base URL, keeping any base path.
func (c *Client) endpoint(path string) string {
	return c.base.JoinPath(path).String()
}

// resolve resolves a link found on a portal page against the base URL.
func (c *Client) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.base.ResolveReference(u).String()
}

func onLoginPage(u *url.URL) bool {
	return u != nil && strings.Contains(u.Path, loginPath)
}
