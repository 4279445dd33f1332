// Package extract pulls links out of HTML directory listings.
package extract

import (
	"io"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// ParseLinks returns every <a href> in body resolved against base.
func ParseLinks(base *url.URL, body io.Reader) ([]*url.URL, error) {
	z := html.NewTokenizer(body)
	var out []*url.URL
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() == io.EOF {
				return out, nil
			}
			return out, z.Err()
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		t := z.Token()
		if !strings.EqualFold(t.Data, "a") {
			continue
		}
		for _, a := range t.Attr {
			if !strings.EqualFold(a.Key, "href") {
				continue
			}
			u, err := url.Parse(strings.TrimSpace(a.Val))
			if err != nil {
				continue
			}
			out = append(out, base.ResolveReference(u))
		}
	}
}

// Entry is one child of a listed directory.
type Entry struct {
	Name string
	URL  *url.URL
	Dir  bool
}

// Children keeps the links that point directly below dir, dropping sort
// links, parent links and anything on another host. Order follows the
// listing and duplicates are removed.
func Children(dir *url.URL, links []*url.URL) []Entry {
	prefix := dir.Path
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	seen := make(map[string]struct{})
	var out []Entry
	for _, u := range links {
		if u.Host != dir.Host || u.RawQuery != "" || u.Fragment != "" {
			continue
		}
		if !strings.HasPrefix(u.Path, prefix) || u.Path == prefix {
			continue
		}
		rest := strings.TrimPrefix(u.Path, prefix)
		isDir := strings.HasSuffix(rest, "/")
		rest = strings.TrimSuffix(rest, "/")
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		if _, ok := seen[rest]; ok {
			continue
		}
		seen[rest] = struct{}{}
		out = append(out, Entry{Name: path.Base(rest), URL: u, Dir: isDir})
	}
	return out
}
