// Package cachekey derives canonical cache keys from a resource identifier and
// a set of request parameters.
//
// A key built here is stable for the same logical request no matter what order
// the parameters were supplied in, so it can be used both as a cache key and
// as a request deduplication key.
package cachekey

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	querySep = "?"
	paramSep = "&"
)

// Build returns base followed by the parameters sorted by name and rendered as
// name=value pairs joined with "&". The "?" separator is only added if there
// is at least one parameter.
func Build(base string, params map[string]any) string {
	if len(params) == 0 {
		return base
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(querySep)
	for i, name := range names {
		if i != 0 {
			b.WriteString(paramSep)
		}
		b.WriteString(name)
		b.WriteByte('=')
		fmt.Fprint(&b, params[name])
	}
	return b.String()
}

// FromValues is like Build, but takes url.Values. A name with multiple values
// is rendered once per value, in the order the values were given.
func FromValues(base string, q url.Values) string {
	if len(q) == 0 {
		return base
	}
	names := make([]string, 0, len(q))
	for name := range q {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(q))
	for _, name := range names {
		for _, val := range q[name] {
			parts = append(parts, name+"="+val)
		}
	}
	if len(parts) == 0 {
		return base
	}
	return base + querySep + strings.Join(parts, paramSep)
}
