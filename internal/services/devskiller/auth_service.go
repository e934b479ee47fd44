package devskiller

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/g2i/hub/internal/browser"
	"github.com/g2i/hub/internal/common"
	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/models"
)

// Authenticator performs the interactive login against the identity provider
// and returns the resulting cookie jar.
type Authenticator interface {
	Login(ctx context.Context) (models.CookieJar, error)
}

// AuthService drives a browser session through the DevSkiller login flow.
// Each login owns exactly one session for its lifetime.
type AuthService struct {
	sessions *browser.Factory
	cookies  *CookieStore
	config   common.DevSkillerConfig
	logger   arbor.ILogger
}

// NewAuthService creates a new authentication service
func NewAuthService(sessions *browser.Factory, cookies *CookieStore, config common.DevSkillerConfig, logger arbor.ILogger) *AuthService {
	return &AuthService{
		sessions: sessions,
		cookies:  cookies,
		config:   config,
		logger:   logger,
	}
}

// Login walks the identity provider's two-step form, hops to the application
// domain to pick up its cookies, persists the full jar with the configured
// TTL, and returns it. Any failure before the final collect aborts the
// attempt; partial jars are never persisted.
func (s *AuthService) Login(ctx context.Context) (models.CookieJar, error) {
	if s.config.Username == "" || s.config.Password == "" {
		return nil, fmt.Errorf("DevSkiller credentials not provided: %w", interfaces.ErrNotConfigured)
	}

	sess, err := s.sessions.Open(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer sess.Close()

	loginURL := s.config.AuthURL + "/login"
	s.logger.Info().Str("url", loginURL).Msg("Starting DevSkiller login")

	if err := sess.Navigate(loginURL); err != nil {
		return nil, err
	}

	if err := s.submitEmail(sess); err != nil {
		return nil, err
	}

	if err := s.submitPassword(sess); err != nil {
		return nil, err
	}

	s.recoverNoAccess(sess)

	if err := s.visitAppDomain(sess); err != nil {
		return nil, err
	}

	jar, err := sess.Cookies()
	if err != nil {
		return nil, err
	}
	if len(jar) == 0 {
		return nil, fmt.Errorf("login produced no cookies")
	}
	if err := jar.Validate(); err != nil {
		return nil, fmt.Errorf("login produced invalid cookie jar: %w", err)
	}

	if err := s.cookies.SaveJar(ctx, jar); err != nil {
		return nil, err
	}

	s.logger.Info().Int("cookies", len(jar)).Msg("Authentication complete")
	return jar, nil
}

// submitEmail fills the username field and advances to the password step
func (s *AuthService) submitEmail(sess *browser.Session) error {
	probe := sessionProber(sess)

	field, err := locate(probe, "email field", emailFieldStrategies(), s.logger)
	if err != nil {
		return err
	}
	if err := sess.Run(
		chromedp.Clear(field.Selector, field.By),
		chromedp.SendKeys(field.Selector, s.config.Username, field.By),
	); err != nil {
		return fmt.Errorf("failed to fill email field: %w", err)
	}

	button, err := locate(probe, "next button", nextButtonStrategies(), s.logger)
	if err != nil {
		return err
	}
	if err := sess.Run(chromedp.Click(button.Selector, button.By)); err != nil {
		return fmt.Errorf("failed to click next button: %w", err)
	}

	return nil
}

// submitPassword waits for the password step, fills it, and submits the login
func (s *AuthService) submitPassword(sess *browser.Session) error {
	// Bounded wait for the password field to appear after the email submit
	if err := sess.RunWithTimeout(passwordWaitTimeout,
		chromedp.WaitVisible(`input[type="password"]`, chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("password field did not appear: %w", err)
	}

	probe := sessionProber(sess)

	field, err := locate(probe, "password field", passwordFieldStrategies(), s.logger)
	if err != nil {
		return err
	}
	if err := sess.Run(
		chromedp.Clear(field.Selector, field.By),
		chromedp.SendKeys(field.Selector, s.config.Password, field.By),
	); err != nil {
		return fmt.Errorf("failed to fill password field: %w", err)
	}

	button, err := locate(probe, "login button", loginButtonStrategies(), s.logger)
	if err != nil {
		return err
	}
	if err := sess.Run(chromedp.Click(button.Selector, button.By)); err != nil {
		return fmt.Errorf("failed to click login button: %w", err)
	}

	// Let the post-login redirects settle
	if err := sess.RunWithTimeout(s.config.RequestTimeout,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	); err != nil {
		return fmt.Errorf("post-login navigation did not settle: %w", err)
	}

	return nil
}

// recoverNoAccess clicks through the "no access" interstitial some accounts
// land on after login. Failure here is non-fatal - the session may still
// carry valid cookies.
func (s *AuthService) recoverNoAccess(sess *browser.Session) {
	current, err := sess.CurrentURL()
	if err != nil || !strings.Contains(current, "/no-access") {
		return
	}

	s.logger.Warn().Str("url", current).Msg("Landed on no-access interstitial, attempting recovery")

	button, err := locate(sessionProber(sess), "go back button", goBackButtonStrategies(), s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("No-access recovery click failed, continuing with current cookies")
		return
	}
	if err := sess.Run(
		chromedp.Click(button.Selector, button.By),
		chromedp.Sleep(time.Second),
	); err != nil {
		s.logger.Warn().Err(err).Msg("No-access recovery click failed, continuing with current cookies")
	}
}

// visitAppDomain navigates to the application home page after the identity
// provider flow. The auth domain and the app domain are distinct: cookies
// scoped to the app domain are only issued on this second hop, and skipping
// it yields a jar that cannot access protected resources.
func (s *AuthService) visitAppDomain(sess *browser.Session) error {
	if err := sess.Navigate(s.config.BaseURL); err != nil {
		return fmt.Errorf("app domain cookie exchange failed: %w", err)
	}
	return nil
}

// passwordWaitTimeout bounds the wait for the password step to render
const passwordWaitTimeout = 15 * time.Second
