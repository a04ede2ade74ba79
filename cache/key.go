package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key builds a deterministic cache key of the form
// prefix:name1:value1:name2:value2 with parameter names sorted, so the same
// parameters always yield the same key regardless of map order.
func Key(prefix string, params map[string]any) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(prefix)
	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte(':')
		fmt.Fprint(&b, params[name])
	}
	return b.String()
}

// KeyFromPairs is Key with parameters given as alternating name, value pairs.
// A trailing name without a value is ignored.
//
//	cache.KeyFromPairs("invoices", "rfc", "XAXX010101000", "year", 2024)
func KeyFromPairs(prefix string, kv ...any) string {
	params := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return Key(prefix, params)
}
