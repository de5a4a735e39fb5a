package browse

import (
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// fakeAttempt scripts the behavior of the page created by one browsing
// context. The last attempt repeats once the script runs out.
type fakeAttempt struct {
	gotoErr    error
	content    string
	contentErr error
	evalResult any
	evalErr    error
}

type fakeEngine struct {
	mu       sync.Mutex
	attempts []fakeAttempt
	idx      int
	contexts []*fakeContext
	opts     []ContextOptions
}

func (e *fakeEngine) NewContext(opts ContextOptions) (BrowsingContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var attempt fakeAttempt
	if len(e.attempts) > 0 {
		if e.idx < len(e.attempts) {
			attempt = e.attempts[e.idx]
			e.idx++
		} else {
			attempt = e.attempts[len(e.attempts)-1]
		}
	}
	c := &fakeContext{attempt: attempt}
	e.contexts = append(e.contexts, c)
	e.opts = append(e.opts, opts)
	return c, nil
}

type fakeContext struct {
	attempt fakeAttempt
	added   []playwright.OptionalCookie
	stored  []playwright.Cookie
	page    *fakePage
	closed  bool
}

func (c *fakeContext) AddCookies(cookies []playwright.OptionalCookie) error {
	c.added = append(c.added, cookies...)
	return nil
}

func (c *fakeContext) Cookies(urls ...string) ([]playwright.Cookie, error) {
	return c.stored, nil
}

func (c *fakeContext) NewPage() (Page, error) {
	p := &fakePage{attempt: c.attempt}
	c.page = p
	return p, nil
}

func (c *fakeContext) Close() error {
	c.closed = true
	return nil
}

type fakePage struct {
	attempt   fakeAttempt
	gotos     []string
	setHTML   []string
	evals     []string
	pageDowns int
	closed    bool
}

func (p *fakePage) Goto(url string, timeout time.Duration) error {
	p.gotos = append(p.gotos, url)
	return p.attempt.gotoErr
}

func (p *fakePage) SetContent(html string) error {
	p.setHTML = append(p.setHTML, html)
	return nil
}

func (p *fakePage) Evaluate(script string) (any, error) {
	p.evals = append(p.evals, script)
	return p.attempt.evalResult, p.attempt.evalErr
}

func (p *fakePage) PageDown() error {
	p.pageDowns++
	return nil
}

func (p *fakePage) Content() (string, error) {
	return p.attempt.content, p.attempt.contentErr
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func fakeStart(engine *fakeEngine) startFunc {
	return func() (BrowserEngine, func() error, error) {
		return engine, func() error { return nil }, nil
	}
}
