package browse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// LaunchOptions configure the browser process started on first use.
type LaunchOptions struct {
	// Headless defaults to true when nil.
	Headless       *bool
	Viewport       *playwright.Size
	Args           []string
	ExecutablePath string
	UserDataDir    string
	StartupTimeout time.Duration
}

func (o LaunchOptions) headless() bool {
	if o.Headless == nil {
		return true
	}
	return *o.Headless
}

type launcherState int

const (
	launcherUnstarted launcherState = iota
	launcherStarting
	launcherReady
)

// startFunc boots the automation engine and returns the engine handle
// plus a teardown function.
type startFunc func() (BrowserEngine, func() error, error)

// browserLauncher memoizes a single browser per session. The first caller
// launches; everyone else reuses the handle. Launching is single-flight
// in both scheduling models: blocking callers park on a waiter channel,
// cooperative callers additionally honor their context while parked.
type browserLauncher struct {
	mu           sync.Mutex
	state        launcherState
	cooperative  bool
	waiters      []chan struct{}
	lastErr      error
	closeOnReady bool

	start  startFunc
	engine BrowserEngine
	stop   func() error
}

func newBrowserLauncher(start startFunc) *browserLauncher {
	return &browserLauncher{start: start}
}

// blocking returns the memoized engine, launching it if needed. It fails
// immediately with SchedulerMismatch when a cooperative caller is driving
// the launch, instead of deadlocking behind suspended waiters.
func (l *browserLauncher) blocking() (BrowserEngine, error) {
	for {
		l.mu.Lock()
		switch l.state {
		case launcherReady:
			engine := l.engine
			l.mu.Unlock()
			return engine, nil
		case launcherStarting:
			if l.cooperative {
				l.mu.Unlock()
				return nil, SchedulerMismatch
			}
			ch := make(chan struct{})
			l.waiters = append(l.waiters, ch)
			l.mu.Unlock()
			<-ch
			if err := l.launchErr(); err != nil {
				return nil, err
			}
		case launcherUnstarted:
			l.state = launcherStarting
			l.cooperative = false
			l.mu.Unlock()
			if err := l.launch(); err != nil {
				return nil, err
			}
		}
	}
}

// acquire is the cooperative counterpart of blocking: concurrent callers
// suspend on the same in-flight launch rather than racing it, and give up
// when their context is canceled.
func (l *browserLauncher) acquire(ctx context.Context) (BrowserEngine, error) {
	for {
		l.mu.Lock()
		switch l.state {
		case launcherReady:
			engine := l.engine
			l.mu.Unlock()
			return engine, nil
		case launcherStarting:
			ch := make(chan struct{})
			l.waiters = append(l.waiters, ch)
			l.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ch:
			}
			if err := l.launchErr(); err != nil {
				return nil, err
			}
		case launcherUnstarted:
			l.state = launcherStarting
			l.cooperative = true
			l.mu.Unlock()
			if err := l.launch(); err != nil {
				return nil, err
			}
		}
	}
}

func (l *browserLauncher) launch() error {
	engine, stop, err := l.start()

	var discard func() error
	l.mu.Lock()
	switch {
	case err != nil:
		l.state = launcherUnstarted
		l.lastErr = err
	case l.closeOnReady:
		// a close raced this launch; tear the fresh engine down
		// instead of memoizing it, waiters will re-launch
		l.state = launcherUnstarted
		l.lastErr = nil
		discard = stop
	default:
		l.state = launcherReady
		l.engine = engine
		l.stop = stop
		l.lastErr = nil
	}
	l.closeOnReady = false
	l.cooperative = false
	for _, ch := range l.waiters {
		close(ch)
	}
	l.waiters = nil
	l.mu.Unlock()

	if discard != nil {
		if derr := discard(); derr != nil {
			slog.Warn("failed to close browser discarded mid-launch", "err", derr)
		}
	}
	return err
}

func (l *browserLauncher) launchErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != launcherReady {
		return l.lastErr
	}
	return nil
}

func (l *browserLauncher) started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == launcherReady
}

// close tears down the browser and the automation engine if one was
// launched, then resets the launcher so a later accessor re-launches.
// Safe to call when nothing was started. Closing while a launch is in
// flight marks the launch for teardown on completion so the engine
// cannot leak past close.
func (l *browserLauncher) close() error {
	l.mu.Lock()
	if l.state == launcherStarting {
		l.closeOnReady = true
		l.mu.Unlock()
		return nil
	}
	stop := l.stop
	l.engine = nil
	l.stop = nil
	l.state = launcherUnstarted
	l.cooperative = false
	l.lastErr = nil
	l.mu.Unlock()

	if stop != nil {
		return stop()
	}
	return nil
}

// launchBrowser installs and starts playwright, then launches a chromium
// process with the session's launch options.
func launchBrowser(opts Options) (BrowserEngine, func() error, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Browser.headless()),
	}
	args := slices.Clone(opts.Browser.Args)
	if opts.Browser.UserDataDir != "" {
		args = append(args, "--user-data-dir="+opts.Browser.UserDataDir)
	}
	if len(args) > 0 {
		launch.Args = args
	}
	if opts.Browser.ExecutablePath != "" {
		launch.ExecutablePath = playwright.String(opts.Browser.ExecutablePath)
	}
	if opts.Browser.StartupTimeout > 0 {
		launch.Timeout = playwright.Float(float64(opts.Browser.StartupTimeout.Milliseconds()))
	}
	if opts.Proxy != "" {
		launch.Proxy = &playwright.Proxy{Server: opts.Proxy}
	}

	browser, err := pw.Chromium.Launch(launch)
	if err != nil {
		pw.Stop()
		return nil, nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	stop := func() error {
		err := browser.Close()
		if stopErr := pw.Stop(); err == nil {
			err = stopErr
		}
		return err
	}
	return playwrightEngine{browser: browser}, stop, nil
}
