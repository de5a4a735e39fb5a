package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"browsehtml/lib/browse"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

var (
	flagUserAgent string
	flagUaStyle   string
	flagInsecure  bool
	flagProxy     string
	flagTimeout   time.Duration
	flagDebugDir  string
	flagCacheDb   string
	flagCacheTtl  time.Duration
	flagHeaded    bool
)

var rootCmd = &cobra.Command{
	Use:   "browse",
	Short: "browse fetches web pages, optionally rendering them in a headless browser.",
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagUserAgent, "ua", "", "Exact user-agent string to send.")
	pf.StringVar(&flagUaStyle, "ua-style", "", "User-agent family to mimic (chrome, firefox, safari, mobile...).")
	pf.BoolVar(&flagInsecure, "insecure", false, "Skip TLS certificate verification.")
	pf.StringVar(&flagProxy, "proxy", "", "Proxy URL for HTTP requests and the browser.")
	pf.DurationVar(&flagTimeout, "timeout", 0, "Per-request HTTP timeout.")
	pf.StringVar(&flagDebugDir, "debug-dir", "", "Dump every HTTP exchange into this directory.")
	pf.StringVar(&flagCacheDb, "cache", "", "Path to a sqlite page cache database.")
	pf.DurationVar(&flagCacheTtl, "cache-ttl", time.Hour, "How long cached pages stay fresh.")
	pf.BoolVar(&flagHeaded, "headed", false, "Run the browser with a visible window.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newSession() (*browse.Session, error) {
	opts := browse.Options{
		UserAgent:          flagUserAgent,
		UserAgentStyle:     flagUaStyle,
		InsecureSkipVerify: flagInsecure,
		Proxy:              flagProxy,
		Timeout:            flagTimeout,
		DebugDir:           flagDebugDir,
	}
	if flagHeaded {
		headless := false
		opts.Browser.Headless = &headless
	}
	if flagCacheDb != "" {
		db, err := sql.Open("sqlite", flagCacheDb)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache db: %w", err)
		}
		cache, err := browse.NewPageCache(db, flagCacheTtl)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize page cache: %w", err)
		}
		opts.Cache = cache
	}
	return browse.NewSession(opts)
}
