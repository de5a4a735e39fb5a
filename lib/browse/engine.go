package browse

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// ContextOptions configures an isolated browsing context. Each render
// attempt gets its own context so cookies and storage never leak between
// concurrent renders on the same browser.
type ContextOptions struct {
	UserAgent         string
	IgnoreHTTPSErrors bool
	Viewport          *playwright.Size
}

// BrowserEngine is the narrow surface this package needs from the
// automation engine. Production code wraps a playwright browser; tests
// substitute fakes.
type BrowserEngine interface {
	NewContext(opts ContextOptions) (BrowsingContext, error)
}

// BrowsingContext is an isolated cookie/storage sandbox within a browser.
type BrowsingContext interface {
	AddCookies(cookies []playwright.OptionalCookie) error
	Cookies(urls ...string) ([]playwright.Cookie, error)
	NewPage() (Page, error)
	Close() error
}

// Page is a single live browser tab.
type Page interface {
	// Goto navigates to url over the network. A zero timeout uses the
	// engine default. Deadline overruns are reported as RenderTimeout.
	Goto(url string, timeout time.Duration) error
	// SetContent loads html into the page without a network round-trip.
	SetContent(html string) error
	Evaluate(script string) (any, error)
	PageDown() error
	Content() (string, error)
	Close() error
}

// PageHandle owns a live page together with the browsing context it was
// opened in. It is handed to the caller after a KeepPage render; the
// caller releases it with Close.
type PageHandle struct {
	page Page
	bctx BrowsingContext
}

func (h *PageHandle) Content() (string, error) {
	return h.page.Content()
}

func (h *PageHandle) Evaluate(script string) (any, error) {
	return h.page.Evaluate(script)
}

func (h *PageHandle) PageDown() error {
	return h.page.PageDown()
}

func (h *PageHandle) Cookies(urls ...string) ([]playwright.Cookie, error) {
	return h.bctx.Cookies(urls...)
}

// HTTPCookies reads the browsing context's cookies back as http cookies,
// letting callers feed browser-set state into a session jar.
func (h *PageHandle) HTTPCookies(urls ...string) ([]*http.Cookie, error) {
	cookies, err := h.bctx.Cookies(urls...)
	if err != nil {
		return nil, err
	}
	return fromBrowserCookies(cookies), nil
}

// Close releases the page first, then its context. Both are always
// attempted; the first failure is the one reported.
func (h *PageHandle) Close() error {
	err := h.page.Close()
	if cerr := h.bctx.Close(); err == nil {
		err = cerr
	}
	return err
}

type playwrightEngine struct {
	browser playwright.Browser
}

func (e playwrightEngine) NewContext(opts ContextOptions) (BrowsingContext, error) {
	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.UserAgent != "" {
		ctxOpts.UserAgent = playwright.String(opts.UserAgent)
	}
	if opts.IgnoreHTTPSErrors {
		ctxOpts.IgnoreHttpsErrors = playwright.Bool(true)
	}
	if opts.Viewport != nil {
		ctxOpts.Viewport = opts.Viewport
	}
	bctx, err := e.browser.NewContext(ctxOpts)
	if err != nil {
		return nil, fmt.Errorf("new browsing context: %w", err)
	}
	return playwrightContext{bctx: bctx}, nil
}

type playwrightContext struct {
	bctx playwright.BrowserContext
}

func (c playwrightContext) AddCookies(cookies []playwright.OptionalCookie) error {
	return c.bctx.AddCookies(cookies)
}

func (c playwrightContext) Cookies(urls ...string) ([]playwright.Cookie, error) {
	return c.bctx.Cookies(urls...)
}

func (c playwrightContext) NewPage() (Page, error) {
	page, err := c.bctx.NewPage()
	if err != nil {
		return nil, err
	}
	return playwrightPage{page: page}, nil
}

func (c playwrightContext) Close() error {
	return c.bctx.Close()
}

type playwrightPage struct {
	page playwright.Page
}

func (p playwrightPage) Goto(url string, timeout time.Duration) error {
	opts := playwright.PageGotoOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(float64(timeout.Milliseconds()))
	}
	_, err := p.page.Goto(url, opts)
	if err != nil && isNavigationTimeout(err) {
		return fmt.Errorf("%w: %v", RenderTimeout, err)
	}
	return err
}

// the driver does not expose a stable timeout sentinel across versions,
// so fall back to the message when errors.Is misses
func isNavigationTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout) ||
		strings.Contains(err.Error(), "Timeout")
}

func (p playwrightPage) SetContent(html string) error {
	return p.page.SetContent(html)
}

func (p playwrightPage) Evaluate(script string) (any, error) {
	return p.page.Evaluate(script)
}

func (p playwrightPage) PageDown() error {
	return p.page.Keyboard().Press("PageDown")
}

func (p playwrightPage) Content() (string, error) {
	return p.page.Content()
}

func (p playwrightPage) Close() error {
	return p.page.Close()
}
