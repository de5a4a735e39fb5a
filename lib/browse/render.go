package browse

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultRetries = 8
	DefaultWait    = 200 * time.Millisecond
	DefaultTimeout = 8 * time.Second
)

// RenderOptions configure a render call. The zero value renders the
// already-fetched URL over the network with the defaults above.
type RenderOptions struct {
	// Retries bounds the number of sequential render attempts.
	Retries int
	// Script is evaluated in-page after navigation; its return value is
	// the result of Render.
	Script string
	// Wait is slept before navigating, letting anti-bot checks settle.
	// Nil uses DefaultWait; point at zero to skip the delay entirely.
	Wait *time.Duration
	// Scrolldown presses page-down this many times to trigger
	// lazy-loaded content, sleeping Sleep between presses. When zero,
	// Sleep is applied once after navigation instead.
	Scrolldown int
	Sleep      time.Duration
	// Reload controls whether the URL is fetched again inside the
	// browser (nil and true) or the fetched HTML is rendered in memory
	// without a network round-trip (false).
	Reload *bool
	// Timeout is the per-attempt navigation deadline.
	Timeout time.Duration
	// KeepPage transfers the live page handle to Response.Page instead
	// of closing it when the render scope exits.
	KeepPage bool
	// Cookies are injected into the browsing context before navigation.
	Cookies []*http.Cookie
	// SendCookiesSession derives the injected cookies from the
	// session's cookie jar, overriding Cookies.
	SendCookiesSession bool
}

type renderConfig struct {
	retries    int
	script     string
	wait       time.Duration
	scrolldown int
	sleep      time.Duration
	reload     bool
	timeout    time.Duration
	keepPage   bool
	cookies    []playwright.OptionalCookie
}

func (r *Response) renderConfig(opts RenderOptions) renderConfig {
	cfg := renderConfig{
		retries:    opts.Retries,
		script:     opts.Script,
		wait:       DefaultWait,
		scrolldown: opts.Scrolldown,
		sleep:      opts.Sleep,
		reload:     true,
		timeout:    opts.Timeout,
		keepPage:   opts.KeepPage,
	}
	if cfg.retries <= 0 {
		cfg.retries = DefaultRetries
	}
	if opts.Wait != nil {
		cfg.wait = *opts.Wait
	}
	if cfg.timeout == 0 {
		cfg.timeout = DefaultTimeout
	}
	if opts.Reload != nil {
		cfg.reload = *opts.Reload
	}
	// the placeholder URL has no network origin to reload from
	if r.url.String() == DefaultURL {
		cfg.reload = false
	}
	if opts.SendCookiesSession {
		cfg.cookies = r.host.jarCookies(r.url)
	} else {
		cfg.cookies = explicitBrowserCookies(opts.Cookies, r.url)
	}
	return cfg
}

// Render obtains fully-rendered page content for this response and
// installs it as the response's document, returning the result of the
// configured script, if any.
//
// Attempts run strictly sequentially. Navigation timeouts and empty
// content are absorbed between attempts; any other failure propagates
// immediately. When the retry budget is spent without content, Render
// fails with MaxRetriesExceeded.
func (r *Response) Render(ctx context.Context, opts RenderOptions) (any, error) {
	ctx, span := tracer.Start(ctx, "Response.Render", trace.WithAttributes(
		attribute.String("url", r.url.String()),
	))
	defer span.End()

	cfg := r.renderConfig(opts)

	var source string
	if !cfg.reload {
		doc, err := r.HTML()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse source document")
			return nil, err
		}
		source = string(doc.Content())
	}

	engine, err := r.host.engine(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire browser")
		return nil, err
	}

	for attempt := 1; attempt <= cfg.retries; attempt++ {
		slog.DebugContext(ctx, "render attempt",
			"url", r.url.String(),
			"attempt", attempt,
			"retries", cfg.retries,
		)

		content, result, handle, err := r.renderOnce(ctx, engine, cfg, source)
		if err != nil {
			if errors.Is(err, RenderTimeout) {
				span.AddEvent("attempt timed out", trace.WithAttributes(
					attribute.Int("attempt", attempt),
				))
				continue
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "render attempt failed")
			return nil, err
		}
		if content == "" {
			if handle != nil {
				handle.Close()
			}
			span.AddEvent("attempt produced no content", trace.WithAttributes(
				attribute.Int("attempt", attempt),
			))
			continue
		}

		r.installContent([]byte(content))
		r.mu.Lock()
		prev := r.page
		r.page = handle
		r.mu.Unlock()
		if prev != nil {
			prev.Close()
		}
		return result, nil
	}

	span.SetStatus(codes.Error, MaxRetriesExceeded.Error())
	return nil, MaxRetriesExceeded
}

// renderOnce performs one full attempt: context creation, cookie
// injection, navigation, optional scripting and scrolling, content
// capture, cleanup. The returned handle is non-nil only for KeepPage.
// Whatever the failure, no page or context is left open behind it.
func (r *Response) renderOnce(
	ctx context.Context,
	engine BrowserEngine,
	cfg renderConfig,
	source string,
) (string, any, *PageHandle, error) {
	bctx, err := engine.NewContext(r.host.contextOptions())
	if err != nil {
		return "", nil, nil, err
	}

	// cookies must land before navigation or script-visible cookie
	// state is wrong
	if len(cfg.cookies) > 0 {
		if err := bctx.AddCookies(cfg.cookies); err != nil {
			bctx.Close()
			return "", nil, nil, err
		}
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return "", nil, nil, err
	}
	handle := &PageHandle{page: page, bctx: bctx}

	if cfg.wait > 0 {
		if err := r.host.pause(ctx, cfg.wait); err != nil {
			handle.Close()
			return "", nil, nil, err
		}
	}

	if cfg.reload {
		if err := page.Goto(r.url.String(), cfg.timeout); err != nil {
			handle.Close()
			return "", nil, nil, err
		}
	} else {
		if err := page.SetContent(source); err != nil {
			handle.Close()
			return "", nil, nil, err
		}
	}

	var result any
	if cfg.script != "" {
		result, err = page.Evaluate(cfg.script)
		if err != nil {
			handle.Close()
			return "", nil, nil, err
		}
	}

	if cfg.scrolldown > 0 {
		for i := 0; i < cfg.scrolldown; i++ {
			if err := page.PageDown(); err != nil {
				handle.Close()
				return "", nil, nil, err
			}
			if cfg.sleep > 0 {
				if err := r.host.pause(ctx, cfg.sleep); err != nil {
					handle.Close()
					return "", nil, nil, err
				}
			}
		}
	} else if cfg.sleep > 0 {
		if err := r.host.pause(ctx, cfg.sleep); err != nil {
			handle.Close()
			return "", nil, nil, err
		}
	}

	content, err := page.Content()
	if err != nil {
		handle.Close()
		return "", nil, nil, err
	}

	if !cfg.keepPage {
		if err := handle.Close(); err != nil {
			// teardown noise must not mask the captured content
			slog.WarnContext(ctx, "failed to close render page", "err", err)
		}
		return content, result, nil, nil
	}
	return content, result, handle, nil
}
