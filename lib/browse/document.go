package browse

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"browsehtml/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// DefaultURL is the placeholder source URL for documents built from raw
// HTML with no network origin. Rendering such a document never reloads
// over the network since there is nothing to reload from.
const DefaultURL = "https://example.org/"

// Document is an immutable parsed representation of an HTML payload plus
// its source URL and content-type hint. The goquery tree is built lazily
// and memoized. A document is never mutated in place; rendered content
// produces a fresh value via ReplaceContent.
type Document struct {
	url         *url.URL
	content     []byte
	contentType string

	once sync.Once
	tree *goquery.Document
	err  error
}

// NewDocument parses pageURL eagerly and defers HTML parsing until the
// first query. An empty pageURL falls back to DefaultURL.
func NewDocument(content []byte, pageURL string) (*Document, error) {
	return NewDocumentWithType(content, pageURL, "")
}

// NewDocumentWithType additionally carries the Content-Type header of the
// original response so charset sniffing can honor declared encodings.
func NewDocumentWithType(content []byte, pageURL, contentType string) (*Document, error) {
	if pageURL == "" {
		pageURL = DefaultURL
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid document url %q: %w", pageURL, err)
	}
	return &Document{
		url:         u,
		content:     content,
		contentType: contentType,
	}, nil
}

func (d *Document) URL() *url.URL {
	return d.url
}

func (d *Document) Content() []byte {
	return d.content
}

// ReplaceContent returns a new document carrying content, keeping the
// source URL and content-type hint of the receiver.
func (d *Document) ReplaceContent(content []byte) *Document {
	return &Document{
		url:         d.url,
		content:     content,
		contentType: d.contentType,
	}
}

func (d *Document) parsed() (*goquery.Document, error) {
	d.once.Do(func() {
		var reader io.Reader = bytes.NewReader(d.content)
		decoded, err := charset.NewReader(reader, d.contentType)
		if err == nil {
			reader = decoded
		}
		d.tree, d.err = goquery.NewDocumentFromReader(reader)
	})
	return d.tree, d.err
}

// Find evaluates a CSS selector against the parsed tree.
func (d *Document) Find(selector string) (*goquery.Selection, error) {
	tree, err := d.parsed()
	if err != nil {
		return nil, err
	}
	return tree.Find(selector), nil
}

// HTML serializes the parsed tree back to markup.
func (d *Document) HTML() (string, error) {
	tree, err := d.parsed()
	if err != nil {
		return "", err
	}
	return goquery.OuterHtml(tree.Selection)
}

// Text returns the normalized visible text of the document.
func (d *Document) Text() (string, error) {
	tree, err := d.parsed()
	if err != nil {
		return "", err
	}
	return htmlutil.NormalizeText(tree.Text()), nil
}

// Links returns the hrefs of the document's anchors as written, skipping
// fragments, javascript: and mailto: links. Duplicates are dropped.
func (d *Document) Links() ([]string, error) {
	tree, err := d.parsed()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var links []string
	tree.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") {
			return
		}
		if seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links, nil
}

// AbsoluteLinks resolves Links against the document's base URL.
func (d *Document) AbsoluteLinks() ([]string, error) {
	links, err := d.Links()
	if err != nil {
		return nil, err
	}
	base, err := d.BaseURL()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []string
	for _, link := range links {
		ref, err := url.Parse(link)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		if seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out, nil
}

// BaseURL is the base for resolving relative links: the href of a <base>
// tag when present, else the document URL with the path truncated after
// its last slash.
func (d *Document) BaseURL() (*url.URL, error) {
	tree, err := d.parsed()
	if err != nil {
		return nil, err
	}

	if href := strings.TrimSpace(tree.Find("base").AttrOr("href", "")); href != "" {
		base, err := url.Parse(href)
		if err == nil {
			return d.url.ResolveReference(base), nil
		}
	}

	base := *d.url
	if idx := strings.LastIndex(base.Path, "/"); idx >= 0 {
		base.Path = base.Path[:idx+1]
	} else {
		base.Path = "/"
	}
	return &base, nil
}
