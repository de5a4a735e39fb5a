package browse

import (
	"net/http"
	"net/url"
	"time"

	"github.com/playwright-community/playwright-go"
)

// jarBrowserCookies converts the cookies a session's jar would send to
// pageURL into browser records. The jar only exposes name/value pairs
// scoped to a request URL, so each record carries the document URL --
// which is also what makes the browser accept it without a domain+path.
func jarBrowserCookies(jar http.CookieJar, pageURL *url.URL) []playwright.OptionalCookie {
	if jar == nil || pageURL == nil {
		return nil
	}
	var out []playwright.OptionalCookie
	for _, c := range jar.Cookies(pageURL) {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, playwright.OptionalCookie{
			Name:  c.Name,
			Value: c.Value,
			URL:   playwright.String(pageURL.String()),
		})
	}
	return out
}

// explicitBrowserCookies converts fully-specified cookies into browser
// records. Name, value, domain, path and secure are always carried;
// expires, httpOnly and sameSite only when the source sets them.
// Records without a usable name are skipped rather than rejected.
func explicitBrowserCookies(cookies []*http.Cookie, pageURL *url.URL) []playwright.OptionalCookie {
	var out []playwright.OptionalCookie
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		rec := playwright.OptionalCookie{
			Name:   c.Name,
			Value:  c.Value,
			Secure: playwright.Bool(c.Secure),
		}
		if c.Domain != "" {
			rec.Domain = playwright.String(c.Domain)
			path := c.Path
			if path == "" {
				path = "/"
			}
			rec.Path = playwright.String(path)
		} else if pageURL != nil {
			// no domain attribute: scope to the originating page
			rec.URL = playwright.String(pageURL.String())
			if c.Path != "" {
				rec.Path = playwright.String(c.Path)
			}
		} else {
			continue
		}
		if !c.Expires.IsZero() {
			rec.Expires = playwright.Float(float64(c.Expires.Unix()))
		}
		if c.HttpOnly {
			rec.HttpOnly = playwright.Bool(true)
		}
		if attr := sameSiteAttr(c.SameSite); attr != nil {
			rec.SameSite = attr
		}
		out = append(out, rec)
	}
	return out
}

// fromBrowserCookies converts records captured from a browsing context
// back into http cookies. Optional fields absent on the browser side stay
// absent here, nothing is fabricated.
func fromBrowserCookies(cookies []playwright.Cookie) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0).UTC()
		}
		if c.SameSite != nil {
			hc.SameSite = fromSameSiteAttr(c.SameSite)
		}
		out = append(out, hc)
	}
	return out
}

func sameSiteAttr(mode http.SameSite) *playwright.SameSiteAttribute {
	switch mode {
	case http.SameSiteLaxMode:
		return playwright.SameSiteAttributeLax
	case http.SameSiteStrictMode:
		return playwright.SameSiteAttributeStrict
	case http.SameSiteNoneMode:
		return playwright.SameSiteAttributeNone
	default:
		return nil
	}
}

func fromSameSiteAttr(attr *playwright.SameSiteAttribute) http.SameSite {
	switch attr {
	case playwright.SameSiteAttributeLax:
		return http.SameSiteLaxMode
	case playwright.SameSiteAttributeStrict:
		return http.SameSiteStrictMode
	case playwright.SameSiteAttributeNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteDefaultMode
	}
}
