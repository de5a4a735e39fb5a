package browse

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"sync"

	"browsehtml/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// next-page symbols are shared mutable state: registering a new symbol
// affects every subsequent search in the process.
var (
	nextSymbolMu sync.RWMutex
	nextSymbols  = []string{"next", "more", "older", "下一页"}
)

// RegisterNextSymbol adds a text token used to recognize pagination
// links. Matching is a case-insensitive substring check.
func RegisterNextSymbol(symbol string) {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if symbol == "" {
		return
	}
	nextSymbolMu.Lock()
	defer nextSymbolMu.Unlock()
	if slices.Contains(nextSymbols, symbol) {
		return
	}
	nextSymbols = append(nextSymbols, symbol)
}

func activeNextSymbols(override []string) []string {
	if len(override) > 0 {
		out := make([]string, 0, len(override))
		for _, s := range override {
			out = append(out, strings.ToLower(s))
		}
		return out
	}
	nextSymbolMu.RLock()
	defer nextSymbolMu.RUnlock()
	return slices.Clone(nextSymbols)
}

// NextLink locates the most plausible "next page" link and resolves it
// against the document's base URL. The second return value is false when
// the document has no candidate link.
//
// Candidates are anchors whose visible text contains a next-page symbol.
// The discovered list is reversed before scoring, and the fallback is
// the last candidate of that reversed order, so it lands on the
// first-discovered anchor rather than the last one in the document.
// The reversal is a compatibility quirk and must be preserved as-is.
func (d *Document) NextLink(symbols ...string) (string, bool) {
	tree, err := d.parsed()
	if err != nil {
		return "", false
	}
	syms := activeNextSymbols(symbols)

	var candidates []*goquery.Selection
	tree.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := strings.ToLower(htmlutil.NormalizeText(a.Text()))
		for _, sym := range syms {
			if strings.Contains(text, sym) {
				candidates = append(candidates, a)
				return
			}
		}
	})
	if len(candidates) == 0 {
		return "", false
	}
	slices.Reverse(candidates)

	for _, a := range candidates {
		for _, token := range strings.Fields(a.AttrOr("rel", "")) {
			if strings.EqualFold(token, "next") {
				return d.resolveLink(a.AttrOr("href", ""))
			}
		}
	}
	for _, a := range candidates {
		for _, class := range strings.Fields(a.AttrOr("class", "")) {
			if strings.Contains(strings.ToLower(class), "next") {
				return d.resolveLink(a.AttrOr("href", ""))
			}
		}
	}
	for _, a := range candidates {
		if strings.Contains(a.AttrOr("href", ""), "page") {
			return d.resolveLink(a.AttrOr("href", ""))
		}
	}
	return d.resolveLink(candidates[len(candidates)-1].AttrOr("href", ""))
}

func (d *Document) resolveLink(href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	base, err := d.BaseURL()
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

// Next fetches the following page of the response's document, or returns
// (nil, nil) when no next-page link is found.
func (r *Response) Next(ctx context.Context, symbols ...string) (*Response, error) {
	ctx, span := tracer.Start(ctx, "Response.Next")
	defer span.End()

	doc, err := r.HTML()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse document")
		return nil, err
	}
	link, ok := doc.NextLink(symbols...)
	if !ok {
		span.AddEvent("no next page")
		return nil, nil
	}
	span.AddEvent("next page", trace.WithAttributes(attribute.String("url", link)))
	return r.host.fetch(ctx, link)
}

// Pages returns a lazy, forward-only iterator over the pages following
// this response. The iterator is not restartable; the starting response
// itself is not part of the sequence.
func (r *Response) Pages(symbols ...string) *PageIterator {
	return &PageIterator{cur: r, symbols: symbols}
}

// PageIterator walks a pagination chain one fetch at a time.
//
//	it := resp.Pages()
//	for it.Next(ctx) {
//		use(it.Page())
//	}
//	if err := it.Err(); err != nil { ... }
type PageIterator struct {
	cur     *Response
	symbols []string
	page    *Response
	err     error
	done    bool
}

// Next advances to the following page, fetching it over the session.
// It returns false at the end of the chain or on the first fetch error.
func (it *PageIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}
	next, err := it.cur.Next(ctx, it.symbols...)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	if next == nil {
		it.done = true
		return false
	}
	it.cur = next
	it.page = next
	return true
}

// Page returns the response produced by the last successful Next call.
func (it *PageIterator) Page() *Response {
	return it.page
}

// Err reports the fetch error that terminated iteration, if any. A chain
// that simply ran out of next-page links leaves Err nil.
func (it *PageIterator) Err() error {
	return it.err
}
