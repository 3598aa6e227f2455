package client

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"strings"
)

// credentialParams never take part in a cache key.
var credentialParams = []string{"apiKey", "ticket"}

// cacheKey builds "METHOD scheme://host/path?params" with the parameters
// sorted by name and the credentials left out.
func cacheKey(method string, target *url.URL, query url.Values) string {
	q := cloneValues(query)
	for _, p := range credentialParams {
		q.Del(p)
	}
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(target.Scheme)
	b.WriteString("://")
	b.WriteString(target.Host)
	b.WriteString(target.EscapedPath())
	if enc := q.Encode(); enc != "" {
		b.WriteByte('?')
		b.WriteString(enc)
	}
	return b.String()
}

// Stream walks a paginated endpoint from page 1 and yields one record at a
// time. It stops when pageCount is reached, a page carries no records, or
// maxResults records have been yielded (0 means no limit). The first page
// must carry pageNumber; pageCount is optional. Without pageCount, a single
// object result or a page echoing the wrong pageNumber also ends the walk.
// An absent first page yields nothing. Errors are yielded once and end the
// sequence.
func (c *Client) Stream(ctx context.Context, rawURL string, params url.Values, maxResults int, opts ...RequestOption) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		yielded := 0
		for page := 1; ; page++ {
			v, err := c.FetchPage(ctx, rawURL, page, params, opts...)
			if err != nil {
				yield(nil, err)
				return
			}
			if v == nil {
				return
			}
			doc, ok := v.(map[string]any)
			if !ok {
				yield(nil, &ProtocolError{URL: rawURL, Reason: "page is not an object"})
				return
			}
			if page == 1 {
				if _, ok := doc["pageNumber"]; !ok {
					yield(nil, &ProtocolError{URL: rawURL, Reason: "missing pageNumber"})
					return
				}
			} else if n, ok := IntField(doc, "pageNumber"); ok && n != page {
				// The endpoint ignores pageNumber and keeps serving one page.
				return
			}

			records, paged := pageRecords(doc)
			if len(records) == 0 {
				return
			}
			for _, r := range records {
				if r == nil {
					continue
				}
				if !yield(r, nil) {
					return
				}
				yielded++
				if maxResults > 0 && yielded >= maxResults {
					return
				}
			}

			count, ok := IntField(doc, "pageCount")
			if (ok && page >= count) || (!ok && !paged) {
				return
			}
		}
	}
}

// pageRecords extracts the records of one page: "results" at the top level,
// or "result" as an array, as an object holding "results", or as a single
// record. paged is false for a single record, which has no following pages.
func pageRecords(doc map[string]any) (records []any, paged bool) {
	if rs, ok := doc["results"].([]any); ok {
		return rs, true
	}
	switch r := doc["result"].(type) {
	case []any:
		return r, true
	case map[string]any:
		if rs, ok := r["results"].([]any); ok {
			return rs, true
		}
		return []any{r}, false
	}
	return nil, false
}

// IntField reads a numeric field that may have been decoded as json.Number,
// float64 or a numeric string.
func IntField(doc map[string]any, name string) (int, bool) {
	switch v := doc[name].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil {
				return 0, false
			}
			return int(f), true
		}
		return int(n), true
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
