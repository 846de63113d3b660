package query

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/christlandtech/storefront-client/internal/utils"
)

// LangParam is the query parameter carrying the UI language.
const LangParam = "lang"

// Params are the query string parameters of a request.
type Params map[string]any

// Encode serializes params into a canonical query string without the leading
// "?". Keys are sorted. nil, empty strings and empty slices are omitted;
// slices are comma-joined; pointers are followed.
func Encode(params Params) string {
	values := url.Values{}
	for k, raw := range params {
		v := utils.Indirect(raw)
		if v == nil {
			continue
		}
		if items, ok := utils.ToStringSlice(v); ok {
			if len(items) == 0 {
				continue
			}
			values.Set(k, strings.Join(items, ","))
			continue
		}
		s := fmt.Sprint(v)
		if s == "" {
			continue
		}
		values.Set(k, s)
	}
	return values.Encode()
}

// BuildURL appends params and the lang parameter to path. The result is also
// the cache key of the request, so it differs per language.
func BuildURL(path string, params Params, lang string) string {
	merged := make(Params, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged[LangParam] = lang

	qs := Encode(merged)
	if qs == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + qs
}
