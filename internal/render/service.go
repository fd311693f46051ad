// Package render implements the browser-automation side of the fetch
// contract: an HTTP service that navigates a headless Chromium to a URL,
// waits for it to settle, and returns the rendered HTML in a JSON
// envelope. The browser backend in internal/fetcher is its client.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"golang.org/x/net/html"

	"github.com/pagehaul/pagehaul/internal/config"
	"github.com/pagehaul/pagehaul/internal/observability"
	"github.com/pagehaul/pagehaul/internal/types"
)

// Service drives a headless Chromium through rod. Pages are recycled
// through a bounded pool, which also caps concurrent tabs.
type Service struct {
	browser  *rod.Browser
	cfg      *config.Render
	logger   *slog.Logger
	metrics  *observability.Metrics
	pagePool chan *rod.Page
}

// NewService launches a browser and prepares the page pool.
func NewService(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Service, error) {
	s := &Service{
		cfg:     &cfg.Render,
		logger:  logger.With("component", "render_service"),
		metrics: metrics,
	}

	launchURL, err := s.launchBrowser()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	s.browser = browser
	s.pagePool = make(chan *rod.Page, s.cfg.MaxPages)

	s.logger.Info("render service ready",
		"max_pages", s.cfg.MaxPages,
		"headless", s.cfg.Headless,
		"stealth", s.cfg.Stealth,
	)

	return s, nil
}

// launchBrowser starts a Chromium instance with appropriate flags.
func (s *Service) launchBrowser() (string, error) {
	l := launcher.New().
		Headless(s.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled")

	if s.cfg.NoSandbox {
		l = l.Set("no-sandbox").Set("disable-setuid-sandbox")
	}

	return l.Launch()
}

// Render navigates to the requested URL and returns the envelope. All
// expected failures are folded into the envelope's pageError; Render
// itself never fails.
func (s *Service) Render(ctx context.Context, req *types.RenderRequest) *types.RenderEnvelope {
	if s.metrics != nil {
		s.metrics.RendersTotal.Add(1)
		s.metrics.ActivePages.Add(1)
		defer s.metrics.ActivePages.Add(-1)
	}

	env := s.render(ctx, req)
	if env.PageError != nil && s.metrics != nil {
		s.metrics.RendersFailed.Add(1)
	}
	return env
}

func (s *Service) render(ctx context.Context, req *types.RenderRequest) *types.RenderEnvelope {
	page, err := s.getPage()
	if err != nil {
		return failEnvelope(fmt.Sprintf("open page: %v", err))
	}
	defer s.putPage(page)

	if err := s.applyHeaders(page, req.Headers); err != nil {
		s.logger.Warn("failed to apply headers", "url", req.URL, "error", err)
	}

	p := page.Context(ctx).Timeout(s.cfg.NavTimeout)

	// The document's network response carries the status code the
	// envelope reports. Subscribe before navigating so the event isn't
	// missed; if it never fires we fall back to 200.
	status := 200
	waitStatus := p.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			status = int(e.Response.Status)
			return true
		}
		return false
	})

	if err := p.Navigate(req.URL); err != nil {
		return failEnvelope(fmt.Sprintf("navigation failed: %v", err))
	}
	waitStatus()

	if err := p.WaitStable(300 * time.Millisecond); err != nil {
		s.logger.Warn("page stability timeout, continuing", "url", req.URL, "error", err)
	}

	if wait := s.effectiveWait(req.WaitAfterLoad); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return failEnvelope("render canceled during post-load wait")
		}
	}

	content, err := p.HTML()
	if err != nil {
		return failEnvelope(fmt.Sprintf("read page content: %v", err))
	}

	s.logger.Debug("render complete",
		"url", req.URL,
		"status", status,
		"title", extractTitle(content),
		"size", len(content),
	)

	return &types.RenderEnvelope{
		Content:    content,
		StatusCode: &status,
	}
}

// effectiveWait clamps the requested post-load wait to the configured
// maximum so one request can't pin a tab indefinitely.
func (s *Service) effectiveWait(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	wait := time.Duration(ms) * time.Millisecond
	if s.cfg.MaxWait > 0 && wait > s.cfg.MaxWait {
		wait = s.cfg.MaxWait
	}
	return wait
}

// applyHeaders sets the User-Agent and any extra request headers on the
// page before navigation.
func (s *Service) applyHeaders(page *rod.Page, headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}

	if ua, ok := headerLookup(headers, "User-Agent"); ok {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua})
		if err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	extra := make([]string, 0, len(headers)*2)
	for k, v := range headers {
		if strings.EqualFold(k, "User-Agent") {
			continue // Already handled
		}
		extra = append(extra, k, v)
	}
	if len(extra) > 0 {
		if _, err := page.SetExtraHeaders(extra); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}
	return nil
}

// Close shuts down the browser and releases resources.
func (s *Service) Close() error {
	close(s.pagePool)
	for page := range s.pagePool {
		_ = page.Close()
	}
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

// getPage retrieves a page from the pool or creates a new one.
func (s *Service) getPage() (*rod.Page, error) {
	select {
	case page := <-s.pagePool:
		return page, nil
	default:
	}
	if s.cfg.Stealth {
		return stealth.Page(s.browser)
	}
	return s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
}

// putPage returns a page to the pool.
func (s *Service) putPage(page *rod.Page) {
	// Navigate to blank to free memory from the last page
	_ = page.Navigate("about:blank")

	select {
	case s.pagePool <- page:
	default:
		_ = page.Close() // Pool full, close the page
	}
}

func headerLookup(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func failEnvelope(msg string) *types.RenderEnvelope {
	return &types.RenderEnvelope{PageError: &msg}
}

// extractTitle uses the HTML tokenizer to find the first <title> element.
// Log decoration only; failures are just an empty string.
func extractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
