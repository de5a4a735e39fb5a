package browse

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/require"
)

func TestJarBrowserCookies(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse("https://example.com/path")
	require.NoError(t, err)

	jar.SetCookies(u, []*http.Cookie{
		{Name: "sid", Value: "abc"},
		{Name: "theme", Value: "dark"},
	})

	got := jarBrowserCookies(jar, u)
	require.Len(t, got, 2)
	for _, c := range got {
		require.NotNil(t, c.URL)
		require.Equal(t, "https://example.com/path", *c.URL)
		require.Nil(t, c.Domain)
		require.Nil(t, c.Expires)
	}
}

func TestJarBrowserCookiesNilInputs(t *testing.T) {
	u, err := url.Parse("https://example.com/")
	require.NoError(t, err)
	require.Nil(t, jarBrowserCookies(nil, u))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	require.Nil(t, jarBrowserCookies(jar, nil))
	require.Nil(t, jarBrowserCookies(jar, u))
}

func TestExplicitBrowserCookies(t *testing.T) {
	u, err := url.Parse("https://example.com/a")
	require.NoError(t, err)
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	got := explicitBrowserCookies([]*http.Cookie{
		{
			Name:     "full",
			Value:    "v1",
			Domain:   "example.com",
			Path:     "/app",
			Secure:   true,
			HttpOnly: true,
			Expires:  expires,
			SameSite: http.SameSiteLaxMode,
		},
		{Name: "bare", Value: "v2"},
		{Name: "", Value: "dropped"},
		nil,
	}, u)

	want := []playwright.OptionalCookie{
		{
			Name:     "full",
			Value:    "v1",
			Domain:   playwright.String("example.com"),
			Path:     playwright.String("/app"),
			Secure:   playwright.Bool(true),
			HttpOnly: playwright.Bool(true),
			Expires:  playwright.Float(float64(expires.Unix())),
			SameSite: playwright.SameSiteAttributeLax,
		},
		{
			Name:   "bare",
			Value:  "v2",
			Secure: playwright.Bool(false),
			URL:    playwright.String("https://example.com/a"),
		},
	}
	require.Empty(t, cmp.Diff(want, got))
}

func TestExplicitBrowserCookiesDefaultPath(t *testing.T) {
	got := explicitBrowserCookies([]*http.Cookie{
		{Name: "c", Value: "v", Domain: "example.com"},
	}, nil)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Path)
	require.Equal(t, "/", *got[0].Path)
}

func TestFromBrowserCookies(t *testing.T) {
	got := fromBrowserCookies([]playwright.Cookie{
		{
			Name:     "sid",
			Value:    "abc",
			Domain:   "example.com",
			Path:     "/",
			Expires:  1893456000,
			Secure:   true,
			HttpOnly: true,
			SameSite: playwright.SameSiteAttributeStrict,
		},
		// session cookie: expires unset on the browser side
		{Name: "tmp", Value: "1", Domain: "example.com", Path: "/"},
		{Name: "", Value: "dropped"},
	})

	require.Len(t, got, 2)
	require.Equal(t, "sid", got[0].Name)
	require.Equal(t, http.SameSiteStrictMode, got[0].SameSite)
	require.Equal(t, time.Unix(1893456000, 0).UTC(), got[0].Expires)
	require.True(t, got[1].Expires.IsZero())
	require.Equal(t, http.SameSiteDefaultMode, got[1].SameSite)
}

func TestSameSiteRoundTrip(t *testing.T) {
	modes := []http.SameSite{
		http.SameSiteLaxMode,
		http.SameSiteStrictMode,
		http.SameSiteNoneMode,
	}
	for _, mode := range modes {
		require.Equal(t, mode, fromSameSiteAttr(sameSiteAttr(mode)))
	}
	require.Nil(t, sameSiteAttr(http.SameSiteDefaultMode))
}
