package http

import (
	"fmt"
	"net/url"
	"strings"
)

func parseBase(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", base)
	}
	return u, nil
}

// joinURL resolves path against base.
//
//   - "http://..." and "https://..." are used as given.
//   - "/x" is root-relative: it replaces base's path. Leading slashes collapse to one,
//     so "//evil.example/x" yields base host + "/evil.example/x", never another host.
//   - "x" resolves against base's path as a directory ("https://h/api" + "x" is
//     "https://h/api/x").
//
// A query string embedded in path is kept.
func joinURL(base, path string) (*url.URL, error) {
	b, err := parseBase(base)
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, fmt.Errorf("parse url %q: %w", path, err)
		}
		return u, nil
	}

	if strings.HasPrefix(path, "/") {
		ref, err := url.Parse("/" + strings.TrimLeft(path, "/"))
		if err != nil {
			return nil, fmt.Errorf("parse path %q: %w", path, err)
		}
		out := *b
		out.Path = ref.Path
		out.RawPath = ref.RawPath
		out.RawQuery = ref.RawQuery
		out.Fragment = ""
		return &out, nil
	}

	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path %q: %w", path, err)
	}
	if ref.Scheme != "" || ref.Host != "" {
		return nil, fmt.Errorf("path %q must not carry a scheme or host", path)
	}
	dir := *b
	if !strings.HasSuffix(dir.Path, "/") {
		dir.Path += "/"
	}
	dir.RawPath = ""
	dir.RawQuery = ""
	return dir.ResolveReference(ref), nil
}
