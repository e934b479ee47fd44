package devskiller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/g2i/hub/internal/browser"
	"github.com/g2i/hub/internal/common"
	"github.com/g2i/hub/internal/interfaces"
	"github.com/g2i/hub/internal/models"
)

// VideoService resolves protected video download links. It prefers a direct
// authenticated HTTP request over full page rendering, falling back to
// rendered navigation and DOM-level discovery when the direct path does not
// yield video content.
type VideoService struct {
	auth     Authenticator
	cookies  *CookieStore
	sessions *browser.Factory
	client   *http.Client
	limiter  *rate.Limiter
	config   common.DevSkillerConfig
	logger   arbor.ILogger
}

// NewVideoService creates a new video resolution service
func NewVideoService(auth Authenticator, cookies *CookieStore, sessions *browser.Factory, config common.DevSkillerConfig, logger arbor.ILogger) *VideoService {
	rps := config.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	return &VideoService{
		auth:     auth,
		cookies:  cookies,
		sessions: sessions,
		client: &http.Client{
			Timeout: config.RequestTimeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(rps), 1),
		config:   config,
		logger:   logger,
	}
}

// ResolveVideo returns a download location for the video behind videoURL.
// A stale jar triggers exactly one re-authentication-and-retry cycle; a
// second authorization failure is terminal for this fetch.
func (s *VideoService) ResolveVideo(ctx context.Context, videoURL string) (string, error) {
	jar, err := s.cookies.Jar(ctx)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		s.logger.Info().Msg("No cached cookie jar, authenticating first")
		jar, err = s.auth.Login(ctx)
	}
	if err != nil {
		return "", err
	}

	resolved, err := s.tryDirect(ctx, videoURL, jar)
	if errors.Is(err, interfaces.ErrUnauthorized) {
		s.logger.Warn().Msg("Direct fetch unauthorized, refreshing authentication and retrying once")
		jar, err = s.auth.Login(ctx)
		if err != nil {
			return "", err
		}
		resolved, err = s.tryDirect(ctx, videoURL, jar)
		if errors.Is(err, interfaces.ErrUnauthorized) {
			return "", fmt.Errorf("fetch still unauthorized after re-authentication: %w", err)
		}
	}
	if err == nil && resolved != "" {
		return resolved, nil
	}
	if err != nil && !errors.Is(err, errNotVideoContent) {
		return "", err
	}

	// Direct request did not yield video content - fall back to rendering
	// the page and discovering the download link in the DOM.
	s.logger.Info().Str("url", videoURL).Msg("Falling back to rendered navigation")
	return s.discoverRendered(ctx, videoURL, jar)
}

// downloadLinkTimeout bounds the wait for the download anchor to render
const downloadLinkTimeout = 15 * time.Second

// errNotVideoContent signals the direct request answered with something other
// than binary/video content, which routes to the rendered fallback.
var errNotVideoContent = errors.New("response is not video content")

// tryDirect issues an authenticated GET with a reconstructed Cookie header.
// Returns the URL itself when it already serves video bytes.
func (s *VideoService) tryDirect(ctx context.Context, videoURL string, jar models.CookieJar) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid video URL: %w", err)
	}
	req.Header.Set("Cookie", jar.Header())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("direct fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", interfaces.ErrUnauthorized
	}
	// A redirect chain ending on the auth domain means the session expired
	// even though the final status is 200.
	if s.redirectedToAuth(resp.Request.URL) {
		return "", interfaces.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("direct fetch returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "video") || strings.Contains(contentType, "application/octet-stream") {
		s.logger.Info().Str("content_type", contentType).Msg("Direct fetch yielded video content")
		return videoURL, nil
	}

	s.logger.Debug().Str("content_type", contentType).Msg("Direct fetch returned non-video content")
	return "", errNotVideoContent
}

func (s *VideoService) redirectedToAuth(final *url.URL) bool {
	if final == nil {
		return false
	}
	authURL, err := url.Parse(s.config.AuthURL)
	if err != nil {
		return false
	}
	return final.Host == authURL.Host
}

// discoverRendered renders the page inside an authenticated session and
// hunts for the download link: first the "Download video" anchor behind the
// "Section 2" tab, then any video element's source attribute.
func (s *VideoService) discoverRendered(ctx context.Context, videoURL string, jar models.CookieJar) (string, error) {
	sess, err := s.sessions.Open(ctx, jar)
	if err != nil {
		return "", fmt.Errorf("failed to open browser session: %w", err)
	}
	defer sess.Close()

	if err := sess.Navigate(videoURL); err != nil {
		return "", err
	}

	// The download link lives behind the Section 2 tab. A missing tab is
	// non-fatal - some layouts render the link directly.
	if err := sess.RunWithTimeout(strategyTimeout,
		chromedp.Click(`//a[contains(normalize-space(.), "Section 2")]`, chromedp.BySearch),
	); err != nil {
		s.logger.Debug().Err(err).Msg("Section 2 link not found, inspecting current page")
	}

	var href string
	err = sess.RunWithTimeout(downloadLinkTimeout,
		chromedp.WaitVisible(`//a[contains(normalize-space(.), "Download video")]`, chromedp.BySearch),
		chromedp.AttributeValue(`//a[contains(normalize-space(.), "Download video")]`, "href", &href, nil, chromedp.BySearch),
	)
	if err == nil && href != "" {
		s.logger.Info().Str("href", href).Msg("Download link discovered")
		return href, nil
	}

	// No anchor - parse the rendered markup for an embedded video source
	html, htmlErr := sess.HTML()
	if htmlErr != nil {
		return "", fmt.Errorf("download link not found and page capture failed: %w", htmlErr)
	}
	if src, ok := findVideoSource(html); ok {
		s.logger.Info().Str("src", src).Msg("Video source discovered in rendered page")
		return src, nil
	}

	return "", fmt.Errorf("no download link or video element found on %s", videoURL)
}

// findVideoSource scans rendered markup for a video element source or a
// download anchor
func findVideoSource(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}

	if src, ok := doc.Find("video[src]").First().Attr("src"); ok && src != "" {
		return src, true
	}
	if src, ok := doc.Find("video source[src]").First().Attr("src"); ok && src != "" {
		return src, true
	}

	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if strings.Contains(strings.ToLower(sel.Text()), "download video") {
			found, _ = sel.Attr("href")
			return false
		}
		return true
	})
	return found, found != ""
}
