package browse

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"browsehtml/lib/restyutil"
	"browsehtml/lib/telemetry"
	"browsehtml/lib/useragent"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/playwright-community/playwright-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultHTTPTimeout = 30 * time.Second

// Options configure a session. The zero value is a usable headless
// session with a stable chrome-style user agent.
type Options struct {
	// UserAgent overrides the generated one when set.
	UserAgent string
	// UserAgentStyle picks the family of the generated user agent
	// (chrome, firefox, safari, ...). Defaults to chrome.
	UserAgentStyle string
	// InsecureSkipVerify disables TLS verification for both the HTTP
	// client and the browser contexts.
	InsecureSkipVerify bool
	// Proxy applies to the HTTP client and the launched browser.
	Proxy string
	// Cookies are attached to every outgoing request.
	Cookies []*http.Cookie
	// Timeout bounds each plain HTTP request. Defaults to 30s.
	Timeout time.Duration
	// Browser configures the lazily-launched browser process.
	Browser LaunchOptions
	// Cache, when set, serves GET responses from storage before the
	// network and stores successful fetches.
	Cache *PageCache
	// DebugDir, when set, dumps every HTTP exchange into the directory.
	DebugDir string
}

// renderHost is what a response needs from the session that produced it:
// a browser to render with, a scheduling-model-appropriate pause, cookie
// derivation and re-fetching for pagination.
type renderHost interface {
	engine(ctx context.Context) (BrowserEngine, error)
	pause(ctx context.Context, d time.Duration) error
	contextOptions() ContextOptions
	jarCookies(u *url.URL) []playwright.OptionalCookie
	fetch(ctx context.Context, link string) (*Response, error)
}

// session is the state shared by both scheduling variants.
type session struct {
	http      *resty.Client
	jar       http.CookieJar
	opts      Options
	userAgent string
	launcher  *browserLauncher
}

func newSessionCore(opts Options, start startFunc) (*session, error) {
	client := resty.New()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	ua := opts.UserAgent
	if ua == "" {
		ua = useragent.NewCache().For(opts.UserAgentStyle)
	}
	client.SetHeader("user-agent", ua)

	if opts.InsecureSkipVerify {
		client.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	client.SetTimeout(timeout)
	if len(opts.Cookies) > 0 {
		client.SetCookies(opts.Cookies)
	}

	if opts.DebugDir != "" {
		restyutil.InstrumentClient(client, tracer, restyutil.NewFilesystemOutput(opts.DebugDir))
	} else {
		telemetry.InstrumentResty(client, "browsehtml.lib.browse.http")
	}

	s := &session{
		http:      client,
		jar:       jar,
		opts:      opts,
		userAgent: ua,
	}
	if start == nil {
		start = func() (BrowserEngine, func() error, error) {
			return launchBrowser(opts)
		}
	}
	s.launcher = newBrowserLauncher(start)
	return s, nil
}

// HTTP exposes the underlying resty client for request-level tweaks.
func (s *session) HTTP() *resty.Client {
	return s.http
}

// Close tears down the browser and automation engine if they were
// started. It is a no-op otherwise, and the session remains usable: a
// later browser access re-launches.
func (s *session) Close() error {
	return s.launcher.close()
}

func (s *session) contextOptions() ContextOptions {
	return ContextOptions{
		UserAgent:         s.userAgent,
		IgnoreHTTPSErrors: s.opts.InsecureSkipVerify,
		Viewport:          s.opts.Browser.Viewport,
	}
}

func (s *session) jarCookies(u *url.URL) []playwright.OptionalCookie {
	return jarBrowserCookies(s.jar, u)
}

func (s *session) get(ctx context.Context, host renderHost, link string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "session:Get", trace.WithAttributes(
		attribute.String("url", link),
	))
	defer span.End()

	if s.opts.Cache != nil {
		if body, contentType, ok := s.opts.Cache.Get(ctx, link); ok {
			span.AddEvent("cache hit")
			return cachedResponse(host, link, contentType, body)
		}
	}

	res, err := s.http.R().
		SetContext(ctx).
		Get(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	resp, err := newResponse(host, res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unusable response")
		return nil, err
	}

	if s.opts.Cache != nil && resp.StatusCode() == http.StatusOK {
		// keyed on the requested link so redirected URLs still hit
		// their own entry on the next lookup
		err := s.opts.Cache.Put(ctx, link, resp.contentType, resp.Body())
		if err != nil {
			span.RecordError(err)
		}
	}
	return resp, nil
}

func (s *session) post(ctx context.Context, host renderHost, link string, form url.Values) (*Response, error) {
	ctx, span := tracer.Start(ctx, "session:Post", trace.WithAttributes(
		attribute.String("url", link),
	))
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		SetFormDataFromValues(form).
		Post(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	return newResponse(host, res)
}

// Session is the blocking variant: render calls and the browser accessor
// block the calling goroutine until the browser responds.
type Session struct {
	*session
}

func NewSession(opts Options) (*Session, error) {
	core, err := newSessionCore(opts, nil)
	if err != nil {
		return nil, err
	}
	return &Session{session: core}, nil
}

func newTestSession(opts Options, start startFunc) (*Session, error) {
	core, err := newSessionCore(opts, start)
	if err != nil {
		return nil, err
	}
	return &Session{session: core}, nil
}

// Browser returns the session's browser engine, launching it on first
// use. At most one browser is live per session.
func (s *Session) Browser() (BrowserEngine, error) {
	return s.launcher.blocking()
}

func (s *Session) Get(ctx context.Context, link string) (*Response, error) {
	return s.session.get(ctx, s, link)
}

func (s *Session) Post(ctx context.Context, link string, form url.Values) (*Response, error) {
	return s.session.post(ctx, s, link, form)
}

func (s *Session) engine(ctx context.Context) (BrowserEngine, error) {
	return s.launcher.blocking()
}

func (s *Session) pause(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

func (s *Session) fetch(ctx context.Context, link string) (*Response, error) {
	return s.Get(ctx, link)
}

// AsyncSession is the cooperative variant: waits suspend on the caller's
// context instead of parking the goroutine unconditionally, and
// concurrent first-time browser accessors share one in-flight launch.
type AsyncSession struct {
	*session
}

func NewAsyncSession(opts Options) (*AsyncSession, error) {
	core, err := newSessionCore(opts, nil)
	if err != nil {
		return nil, err
	}
	return &AsyncSession{session: core}, nil
}

func newTestAsyncSession(opts Options, start startFunc) (*AsyncSession, error) {
	core, err := newSessionCore(opts, start)
	if err != nil {
		return nil, err
	}
	return &AsyncSession{session: core}, nil
}

// Browser returns the session's browser engine, launching it on first
// use. Concurrent callers during launch wait on the same attempt; the
// wait is abandoned when ctx is canceled.
func (s *AsyncSession) Browser(ctx context.Context) (BrowserEngine, error) {
	return s.launcher.acquire(ctx)
}

func (s *AsyncSession) Get(ctx context.Context, link string) (*Response, error) {
	return s.session.get(ctx, s, link)
}

func (s *AsyncSession) Post(ctx context.Context, link string, form url.Values) (*Response, error) {
	return s.session.post(ctx, s, link, form)
}

func (s *AsyncSession) engine(ctx context.Context) (BrowserEngine, error) {
	return s.launcher.acquire(ctx)
}

func (s *AsyncSession) pause(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *AsyncSession) fetch(ctx context.Context, link string) (*Response, error) {
	return s.Get(ctx, link)
}
