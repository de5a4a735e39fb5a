package browse

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/go-resty/resty/v2"
)

// Response is a document-bearing HTTP response. The parsed document is
// built lazily and swapped wholesale when rendered content arrives.
type Response struct {
	host        renderHost
	url         *url.URL
	status      int
	header      http.Header
	body        []byte
	contentType string
	raw         *resty.Response

	mu   sync.Mutex
	html *Document
	page *PageHandle
}

func newResponse(host renderHost, res *resty.Response) (*Response, error) {
	finalURL := finalRequestURL(res)
	if finalURL == nil {
		return nil, fmt.Errorf("response carries no usable url (request url %q)", res.Request.URL)
	}
	return &Response{
		host:        host,
		url:         finalURL,
		status:      res.StatusCode(),
		header:      res.Header(),
		body:        res.Body(),
		contentType: res.Header().Get("Content-Type"),
		raw:         res,
	}, nil
}

// finalRequestURL prefers the URL after redirects over the one requested.
func finalRequestURL(res *resty.Response) *url.URL {
	if res.RawResponse != nil &&
		res.RawResponse.Request != nil &&
		res.RawResponse.Request.URL != nil {
		return res.RawResponse.Request.URL
	}
	u, err := url.Parse(res.Request.URL)
	if err != nil {
		return nil
	}
	return u
}

func cachedResponse(host renderHost, link string, contentType string, body []byte) (*Response, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("invalid cached url %q: %w", link, err)
	}
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &Response{
		host:        host,
		url:         u,
		status:      http.StatusOK,
		header:      header,
		body:        body,
		contentType: contentType,
	}, nil
}

func (r *Response) StatusCode() int {
	return r.status
}

func (r *Response) Header() http.Header {
	return r.header
}

func (r *Response) Body() []byte {
	return r.body
}

// Raw exposes the underlying resty response. It is nil for responses
// served from the page cache.
func (r *Response) Raw() *resty.Response {
	return r.raw
}

func (r *Response) URL() *url.URL {
	return r.url
}

// Cookies returns the cookies set by this response.
func (r *Response) Cookies() []*http.Cookie {
	if r.raw == nil {
		return nil
	}
	return r.raw.Cookies()
}

// HTML returns the response's parsed document, building it on first use.
func (r *Response) HTML() (*Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.html == nil {
		doc, err := NewDocumentWithType(r.body, r.url.String(), r.contentType)
		if err != nil {
			return nil, err
		}
		r.html = doc
	}
	return r.html, nil
}

// Page returns the live page handle kept by the last KeepPage render,
// or nil. Ownership stays with the response until ReleasePage.
func (r *Response) Page() *PageHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

// ReleasePage closes the kept page handle, if any.
func (r *Response) ReleasePage() error {
	r.mu.Lock()
	page := r.page
	r.page = nil
	r.mu.Unlock()
	if page == nil {
		return nil
	}
	return page.Close()
}

// Refresh re-captures content from the kept live page and replaces the
// document with it. Useful after interacting with a KeepPage handle.
func (r *Response) Refresh() error {
	r.mu.Lock()
	page := r.page
	r.mu.Unlock()
	if page == nil {
		return NoLivePage
	}

	content, err := page.Content()
	if err != nil {
		return err
	}
	r.installContent([]byte(content))
	return nil
}

// installContent swaps in a fresh document built from content, keeping
// the response URL. The previous document value is discarded, not
// mutated.
func (r *Response) installContent(content []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.html != nil {
		r.html = r.html.ReplaceContent(content)
	} else {
		doc, err := NewDocumentWithType(content, r.url.String(), r.contentType)
		if err == nil {
			r.html = doc
		}
	}
	r.body = content
}
