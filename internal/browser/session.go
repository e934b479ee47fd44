package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/common"
	"github.com/g2i/hub/internal/models"
)

// Session wraps a single isolated browser context. A session is exclusively
// owned by one in-flight operation and must be closed on every exit path.
type Session struct {
	ctx             context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	logger          arbor.ILogger
	config          common.BrowserConfig

	mu     sync.Mutex
	closed bool
}

// Factory opens browser sessions with shared configuration.
type Factory struct {
	config common.BrowserConfig
	logger arbor.ILogger
}

// NewFactory creates a session factory
func NewFactory(config common.BrowserConfig, logger arbor.ILogger) *Factory {
	return &Factory{
		config: config,
		logger: logger,
	}
}

// Verify launches and tears down a throwaway session to confirm Chrome can
// start with the configured flags.
func (f *Factory) Verify() error {
	sess, err := f.Open(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("browser verification failed: %w", err)
	}
	sess.Close()
	f.logger.Debug().Msg("Browser verified")
	return nil
}

// Open launches a fresh isolated browser context, optionally seeding the
// given cookie jar before the first navigation so the very first request
// already authenticates. Contexts are never reused across calls.
func (f *Factory) Open(parent context.Context, cookies models.CookieJar) (*Session, error) {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.config.Headless),
		chromedp.Flag("disable-gpu", f.config.DisableGPU),
		chromedp.Flag("no-sandbox", f.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(f.config.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(parent, allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	s := &Session{
		ctx:             browserCtx,
		browserCancel:   browserCancel,
		allocatorCancel: allocatorCancel,
		logger:          f.logger,
		config:          f.config,
	}

	// Startup test confirms the browser process actually launched
	startupCtx, startupCancel := context.WithTimeout(browserCtx, f.config.NavigateTimeout)
	defer startupCancel()
	if err := chromedp.Run(startupCtx, chromedp.Navigate("about:blank")); err != nil {
		s.Close()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to enable network domain: %w", err)
	}

	if len(cookies) > 0 {
		if err := s.seedCookies(cookies); err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// seedCookies injects the stored jar into the browser before navigation
func (s *Session) seedCookies(cookies models.CookieJar) error {
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		injected := 0
		for _, c := range cookies {
			param := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)

			if c.Expires > 0 {
				expiresTime := time.Unix(int64(c.Expires), 0)
				if expiresTime.After(time.Now()) {
					timestamp := cdp.TimeSinceEpoch(expiresTime)
					param = param.WithExpires(&timestamp)
				}
			}

			switch strings.ToLower(c.SameSite) {
			case "strict":
				param = param.WithSameSite(network.CookieSameSiteStrict)
			case "lax":
				param = param.WithSameSite(network.CookieSameSiteLax)
			case "none":
				param = param.WithSameSite(network.CookieSameSiteNone)
			}

			if err := param.Do(ctx); err != nil {
				s.logger.Warn().
					Err(err).
					Str("cookie_name", c.Name).
					Str("domain", c.Domain).
					Msg("Failed to inject cookie")
				continue
			}
			injected++
		}

		s.logger.Debug().
			Int("injected", injected).
			Int("total", len(cookies)).
			Msg("Authentication cookies injected into browser")
		return nil
	}))
	if err != nil {
		return fmt.Errorf("failed to inject cookies: %w", err)
	}
	return nil
}

// Navigate loads a URL with a bounded retry loop on transient failure. Each
// retry is preceded by a fixed backoff; exhausting retries is fatal.
func (s *Session) Navigate(url string) error {
	var lastErr error

	for attempt := 1; attempt <= s.config.NavigateRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(s.ctx, s.config.NavigateTimeout)
		err := chromedp.Run(attemptCtx,
			chromedp.Navigate(url),
			chromedp.WaitReady("body", chromedp.ByQuery),
		)
		cancel()

		if err == nil {
			return nil
		}

		// A cancelled session context means the job was cancelled, not a
		// transient navigation failure - do not retry.
		if s.ctx.Err() != nil {
			return fmt.Errorf("navigation cancelled: %w", s.ctx.Err())
		}

		// Only timeouts and connection failures earn a retry
		if !IsTransientNavigationError(err) {
			return fmt.Errorf("navigation to %s failed: %w", url, err)
		}

		lastErr = err
		s.logger.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt).
			Int("max_attempts", s.config.NavigateRetries).
			Msg("Navigation failed")

		if attempt < s.config.NavigateRetries {
			select {
			case <-time.After(s.config.RetryBackoff):
			case <-s.ctx.Done():
				return fmt.Errorf("navigation cancelled: %w", s.ctx.Err())
			}
		}
	}

	return fmt.Errorf("navigation to %s failed after %d attempts: %w", url, s.config.NavigateRetries, lastErr)
}

// Run executes chromedp actions against the session
func (s *Session) Run(actions ...chromedp.Action) error {
	return chromedp.Run(s.ctx, actions...)
}

// RunWithTimeout executes actions under a bounded wait
func (s *Session) RunWithTimeout(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// CurrentURL returns the page's current location
func (s *Session) CurrentURL() (string, error) {
	var location string
	if err := chromedp.Run(s.ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}

// HTML returns the rendered document markup
func (s *Session) HTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

// Cookies collects the browser's full cookie jar
func (s *Session) Cookies() (models.CookieJar, error) {
	var jar models.CookieJar
	err := chromedp.Run(s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			jar = jar.Add(models.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Expires:  c.Expires,
				Secure:   c.Secure,
				HTTPOnly: c.HTTPOnly,
				SameSite: string(c.SameSite),
			})
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to collect cookies: %w", err)
	}
	return jar, nil
}

// Close tears down the browser context and process. Safe to call multiple
// times; teardown runs even when the session context was force-cancelled.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocatorCancel != nil {
		s.allocatorCancel()
	}
	s.logger.Debug().Msg("Browser session closed")
}

// IsClosed reports whether Close has run
func (s *Session) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// IsTransientNavigationError reports whether an error looks like a timeout or
// connection failure worth retrying, as opposed to a cancelled context.
func IsTransientNavigationError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := err.Error()
	return errors.Is(err, context.DeadlineExceeded) ||
		strings.Contains(msg, "net::ERR_CONNECTION") ||
		strings.Contains(msg, "net::ERR_TIMED_OUT") ||
		strings.Contains(msg, "net::ERR_NAME_NOT_RESOLVED")
}
