package aggregate

import (
	"net/url"
	"sort"
	"strings"

	"github.com/hyperifyio/companywatch/internal/source"
)

// Dedupe merges candidates in the order given and drops every candidate whose
// lower-cased normalized URL was already seen. Candidates with an empty URL are
// dropped. The first occurrence is kept unchanged.
func Dedupe(refs []source.Ref) []source.Ref {
	seen := make(map[string]struct{}, len(refs))
	out := make([]source.Ref, 0, len(refs))
	for _, r := range refs {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		key := Key(r.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Key is the identity of a candidate URL.
func Key(raw string) string {
	return strings.ToLower(NormalizeURL(raw))
}

// NormalizeURL reduces raw to scheme, host, path without trailing slash and
// query parameters sorted by key then value. The fragment is dropped.
// Unparseable input is returned trimmed but otherwise unchanged.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	var b strings.Builder
	if u.Scheme != "" {
		b.WriteString(u.Scheme)
		b.WriteString("://")
	}
	b.WriteString(u.Host)
	b.WriteString(strings.TrimRight(u.EscapedPath(), "/"))
	if q := sortedQuery(u.Query()); q != "" {
		b.WriteByte('?')
		b.WriteString(q)
	}
	return b.String()
}

func sortedQuery(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}
