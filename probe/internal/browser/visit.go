package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// VisitResult is the observable outcome of loading one candidate URL.
type VisitResult struct {
	HTML       string
	FinalURL   string
	Screenshot []byte // PNG, only when CaptureScreenshots is set
}

// Visit opens a stealth tab, navigates to pageURL with a bounded timeout,
// waits for the load event, and serialises the DOM. The tab is closed
// before returning on every path. Loading a URL has no world state to undo,
// so a failed Visit is safe to retry.
func (m *Manager) Visit(ctx context.Context, pageURL string, timeout time.Duration) (*VisitResult, error) {
	b, err := m.handle()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	if len(m.cfg.ResourceBlocking) > 0 {
		if err := blockResources(page, m.cfg.ResourceBlocking); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := page.Context(navCtx)
	if err := p.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return nil, fmt.Errorf("browser: wait load %s: %w", pageURL, err)
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: read DOM: %w", err)
	}

	info, err := p.Info()
	if err != nil {
		return nil, fmt.Errorf("browser: page info: %w", err)
	}

	out := &VisitResult{
		HTML:     res.Value.Str(),
		FinalURL: info.URL,
	}

	if m.cfg.CaptureScreenshots {
		png, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
		if err != nil {
			m.cfg.Logger.Warn("browser: screenshot failed", "url", pageURL, "error", err)
		} else {
			out.Screenshot = png
		}
	}

	return out, nil
}

// blockResources sets up request interception to drop the configured
// resource types before they are fetched.
func blockResources(page *rod.Page, types []string) error {
	blocked := make(map[string]bool, len(types))
	for _, t := range types {
		blocked[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if blocked[configName(string(h.Request.Type()))] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()

	return nil
}

// configName maps CDP resource type names to the plural names used in the
// config file.
func configName(resType string) string {
	switch strings.ToLower(resType) {
	case "image":
		return "images"
	case "font":
		return "fonts"
	case "stylesheet":
		return "stylesheets"
	default:
		return strings.ToLower(resType)
	}
}
