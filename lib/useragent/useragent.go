// Package useragent hands out realistic user-agent strings keyed by a
// browser style. Each cache memoizes one generated string per style so a
// session presents a stable identity across requests.
package useragent

import (
	"strings"
	"sync"

	fakeua "github.com/EDDYCJY/fake-useragent"
)

const DefaultStyle = "chrome"

type Cache struct {
	mu       sync.Mutex
	byStyle  map[string]string
	generate func(style string) string
}

func NewCache() *Cache {
	return &Cache{
		byStyle:  map[string]string{},
		generate: generate,
	}
}

// For returns the memoized user-agent for style, generating it on first
// use. An empty style falls back to DefaultStyle.
func (c *Cache) For(style string) string {
	key := strings.ToLower(strings.TrimSpace(style))
	if key == "" {
		key = DefaultStyle
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ua, ok := c.byStyle[key]; ok {
		return ua
	}
	ua := c.generate(key)
	c.byStyle[key] = ua
	return ua
}

func generate(style string) string {
	switch style {
	case "chrome":
		return fakeua.Chrome()
	case "firefox":
		return fakeua.Firefox()
	case "safari":
		return fakeua.Safari()
	case "ie", "internet-explorer":
		return fakeua.InternetExplorer()
	case "computer", "desktop":
		return fakeua.Computer()
	case "mobile":
		return fakeua.Mobile()
	default:
		return fakeua.Random()
	}
}
