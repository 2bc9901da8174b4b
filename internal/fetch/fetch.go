// Package fetch retrieves job posting pages over HTTP and reduces them to
// plain text for downstream extraction. Fetching is time-boxed and bounded
// to a small number of attempts; callers treat failure as a degraded input,
// not a fatal error.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxAttempts bounds retries for a posting URL. Job pages that
	// fail twice are abandoned rather than blocking the pipeline.
	DefaultMaxAttempts = 2

	defaultUserAgent = "Mozilla/5.0 (compatible; ResumeTailor/1.0)"
)

// Error describes a failed posting fetch.
type Error struct {
	URL      string
	Attempts int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s failed after %d attempt(s): %s: %v", e.URL, e.Attempts, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %s", e.URL, e.Attempts, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures a Fetcher.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	UserAgent   string
}

// DefaultOptions returns the standard fetch bounds.
func DefaultOptions() *Options {
	return &Options{
		Timeout:     DefaultTimeout,
		MaxAttempts: DefaultMaxAttempts,
		UserAgent:   defaultUserAgent,
	}
}

// Fetcher downloads job posting pages and extracts their visible text.
type Fetcher struct {
	client *http.Client
	opts   *Options
	logger *zap.Logger
}

// New builds a Fetcher. A nil opts selects DefaultOptions; a nil logger
// disables logging.
func New(opts *Options, logger *zap.Logger) *Fetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
		logger: logger,
	}
}

// FetchText downloads the page at urlStr and returns its main body text.
// It retries transient failures up to the configured attempt bound.
func (f *Fetcher) FetchText(ctx context.Context, urlStr string) (string, error) {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{URL: urlStr, Attempts: 0, Message: "invalid URL", Cause: err}
	}

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", &Error{URL: urlStr, Attempts: attempt - 1, Message: "canceled", Cause: err}
		}

		html, err := f.fetchOnce(ctx, urlStr)
		if err != nil {
			lastErr = err
			f.logger.Warn("posting fetch attempt failed",
				zap.String("url", urlStr),
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		text, err := ExtractText(html, selectorsFor(parsed.Host))
		if err != nil {
			lastErr = err
			continue
		}
		return text, nil
	}

	return "", &Error{URL: urlStr, Attempts: f.opts.MaxAttempts, Message: "all attempts failed", Cause: lastErr}
}

func (f *Fetcher) fetchOnce(ctx context.Context, urlStr string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused before the retry.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(body), nil
}

// ExtractText parses HTML and returns the visible text of the main content
// region. Navigation, scripts, and other chrome are stripped first; if no
// content selector matches, the whole body is used.
func ExtractText(html string, contentSelectors []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	doc.Find("nav, footer, header, script, style, noscript, iframe, .cookie-banner, .sidebar").Remove()

	var main *goquery.Selection
	for _, sel := range contentSelectors {
		if found := doc.Find(sel); found.Length() > 0 {
			main = found.First()
			break
		}
	}
	if main == nil {
		main = doc.Find("body")
	}

	return collapseWhitespace(main.Text()), nil
}

// selectorsFor picks content selectors for known job board hosts, falling
// back to generic posting selectors.
func selectorsFor(host string) []string {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "greenhouse.io"):
		return append([]string{"#content", ".app-body"}, genericPostingSelectors...)
	case strings.Contains(host, "lever.co"):
		return append([]string{".posting", ".posting-page"}, genericPostingSelectors...)
	case strings.Contains(host, "myworkdayjobs.com"):
		return append([]string{"[data-automation-id='jobPostingDescription']"}, genericPostingSelectors...)
	default:
		return genericPostingSelectors
	}
}

var genericPostingSelectors = []string{
	".job-description",
	"#job-description",
	".job-details",
	".posting-content",
	"main",
	"article",
	".content",
	"#content",
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
