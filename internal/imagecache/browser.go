// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package imagecache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// renderTimeout bounds one navigation.
var renderTimeout = 30 * time.Second

// settleDelay lets lazy avatar images swap in after load.
var settleDelay = time.Second

// Browser renders person pages in a local Chrome driven by Rod, with the
// stealth patches applied to every tab. Pages that refuse plain HTTP
// clients usually render here.
type Browser struct {
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// LaunchBrowser starts Chrome. A non-empty profileDir keeps cookies
// between runs so a solved challenge stays solved.
func LaunchBrowser(profileDir string, headed bool) (*Browser, error) {
	l := launcher.New().Headless(!headed)
	if profileDir != "" {
		l = l.UserDataDir(profileDir)
	}
	l = l.Set("disable-blink-features", "AutomationControlled")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	return &Browser{browser: b, lnch: l}, nil
}

// Render navigates to url and returns the rendered document.
func (b *Browser) Render(ctx context.Context, url string) (string, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		return "", fmt.Errorf("browser: wait load %s: %w", url, err)
	}

	t := time.NewTimer(settleDelay)
	select {
	case <-navCtx.Done():
		t.Stop()
		return "", navCtx.Err()
	case <-t.C:
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// Close shuts Chrome down.
func (b *Browser) Close() error {
	if b.browser != nil {
		b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return nil
}
