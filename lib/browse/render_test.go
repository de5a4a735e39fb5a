package browse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"browsehtml/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func testSession(t *testing.T, engine *fakeEngine) *Session {
	sess, err := newTestSession(Options{UserAgent: "test-agent"}, fakeStart(engine))
	require.NoError(t, err)
	return sess
}

func testResponse(t *testing.T, host renderHost, link, body string) *Response {
	u, err := url.Parse(link)
	require.NoError(t, err)
	return &Response{
		host:        host,
		url:         u,
		status:      http.StatusOK,
		header:      http.Header{},
		body:        []byte(body),
		contentType: "text/html",
	}
}

func timeoutErr() error {
	return fmt.Errorf("%w: navigation exceeded deadline", RenderTimeout)
}

func TestRenderRetriesExhausted(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{{gotoErr: timeoutErr()}}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{Retries: 3})
	require.ErrorIs(t, err, MaxRetriesExceeded)
	require.Len(t, engine.contexts, 3)
	for _, c := range engine.contexts {
		require.True(t, c.closed)
		require.True(t, c.page.closed)
	}
}

func TestRenderSucceedsAfterTimeouts(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{gotoErr: timeoutErr()},
		{gotoErr: timeoutErr()},
		{content: "<html><body><p>rendered</p></body></html>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Len(t, engine.contexts, 3)

	doc, err := res.HTML()
	require.NoError(t, err)
	text, err := doc.Text()
	require.NoError(t, err)
	require.Contains(t, text, "rendered")

	// not a KeepPage render, everything must be torn down
	require.Nil(t, res.Page())
	for _, c := range engine.contexts {
		require.True(t, c.closed)
		require.True(t, c.page.closed)
	}
}

func TestRenderEmptyContentRetries(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: ""},
		{content: "<p>second try</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Len(t, engine.contexts, 2)
	require.Equal(t, "<p>second try</p>", string(res.Body()))
}

func TestRenderFatalErrorStopsRetrying(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	boom := errors.New("browser crashed")
	engine := &fakeEngine{attempts: []fakeAttempt{{gotoErr: boom}}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{Retries: 5})
	require.ErrorIs(t, err, boom)
	require.Len(t, engine.contexts, 1)
	require.True(t, engine.contexts[0].closed)
}

func TestRenderKeepPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>live</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{KeepPage: true})
	require.NoError(t, err)

	handle := res.Page()
	require.NotNil(t, handle)
	require.False(t, engine.contexts[0].closed)
	require.False(t, engine.contexts[0].page.closed)

	content, err := handle.Content()
	require.NoError(t, err)
	require.Equal(t, "<p>live</p>", content)

	require.NoError(t, res.ReleasePage())
	require.True(t, engine.contexts[0].closed)
	require.True(t, engine.contexts[0].page.closed)
	require.Nil(t, res.Page())
	require.NoError(t, res.ReleasePage())
}

func TestRefreshWithoutLivePage(t *testing.T) {
	engine := &fakeEngine{}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	require.ErrorIs(t, res.Refresh(), NoLivePage)
}

func TestRefreshFromLivePage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>live</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{KeepPage: true})
	require.NoError(t, err)

	engine.contexts[0].page.attempt.content = "<p>mutated</p>"
	require.NoError(t, res.Refresh())
	require.Equal(t, "<p>mutated</p>", string(res.Body()))
}

func TestRenderScriptAndScrolldown(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>done</p>", evalResult: float64(42)},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	result, err := res.Render(context.Background(), RenderOptions{
		Script:     "() => 42",
		Scrolldown: 3,
	})
	require.NoError(t, err)
	require.Equal(t, float64(42), result)

	page := engine.contexts[0].page
	require.Equal(t, []string{"() => 42"}, page.evals)
	require.Equal(t, 3, page.pageDowns)
}

func TestRenderWithoutReload(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>in memory</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	reload := false
	_, err := res.Render(context.Background(), RenderOptions{Reload: &reload})
	require.NoError(t, err)

	page := engine.contexts[0].page
	require.Empty(t, page.gotos)
	require.Len(t, page.setHTML, 1)
	require.Contains(t, page.setHTML[0], "before")
}

func TestRenderPlaceholderURLNeverNavigates(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>offline</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, DefaultURL, "<p>raw html</p>")

	_, err := res.Render(context.Background(), RenderOptions{})
	require.NoError(t, err)

	page := engine.contexts[0].page
	require.Empty(t, page.gotos)
	require.Len(t, page.setHTML, 1)
}

func TestRenderInjectsExplicitCookies(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>ok</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{
		Cookies: []*http.Cookie{{Name: "sid", Value: "abc"}},
	})
	require.NoError(t, err)

	added := engine.contexts[0].added
	require.Len(t, added, 1)
	require.Equal(t, "sid", added[0].Name)
	require.Equal(t, "abc", added[0].Value)
	require.NotNil(t, added[0].URL)
	require.Equal(t, "https://example.com/a", *added[0].URL)
}

func TestRenderInjectsSessionJarCookies(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>ok</p>"},
	}}
	sess := testSession(t, engine)

	u, err := url.Parse("https://example.com/a")
	require.NoError(t, err)
	sess.jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "xyz"}})

	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")
	_, err = res.Render(context.Background(), RenderOptions{
		SendCookiesSession: true,
		// explicit cookies lose to the jar when both are given
		Cookies: []*http.Cookie{{Name: "ignored", Value: "1"}},
	})
	require.NoError(t, err)

	added := engine.contexts[0].added
	require.Len(t, added, 1)
	require.Equal(t, "session", added[0].Name)
	require.Equal(t, "xyz", added[0].Value)
}

// pauseRecordingHost intercepts the pre-navigation and scroll delays so
// tests can assert on them without waiting them out.
type pauseRecordingHost struct {
	renderHost
	pauses []time.Duration
}

func (h *pauseRecordingHost) pause(_ context.Context, d time.Duration) error {
	h.pauses = append(h.pauses, d)
	return nil
}

func TestRenderWaitConfiguration(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	newHost := func() (*pauseRecordingHost, *fakeEngine) {
		engine := &fakeEngine{attempts: []fakeAttempt{{content: "<p>ok</p>"}}}
		return &pauseRecordingHost{renderHost: testSession(t, engine)}, engine
	}

	// unset wait falls back to the default delay
	host, _ := newHost()
	res := testResponse(t, host, "https://example.com/a", "<p>before</p>")
	_, err := res.Render(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{DefaultWait}, host.pauses)

	// an explicit zero wait means no delay at all
	host, _ = newHost()
	res = testResponse(t, host, "https://example.com/a", "<p>before</p>")
	zero := time.Duration(0)
	_, err = res.Render(context.Background(), RenderOptions{Wait: &zero})
	require.NoError(t, err)
	require.Empty(t, host.pauses)

	// a custom wait is used verbatim
	host, _ = newHost()
	res = testResponse(t, host, "https://example.com/a", "<p>before</p>")
	custom := 5 * time.Millisecond
	_, err = res.Render(context.Background(), RenderOptions{Wait: &custom})
	require.NoError(t, err)
	require.Equal(t, []time.Duration{custom}, host.pauses)
}

func TestRenderUsesSessionUserAgent(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browse")
	defer cleanup()

	engine := &fakeEngine{attempts: []fakeAttempt{
		{content: "<p>ok</p>"},
	}}
	sess := testSession(t, engine)
	res := testResponse(t, sess, "https://example.com/a", "<p>before</p>")

	_, err := res.Render(context.Background(), RenderOptions{})
	require.NoError(t, err)
	require.Equal(t, "test-agent", engine.opts[0].UserAgent)
}
