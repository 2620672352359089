package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type localeContextKey struct{}
type countryContextKey struct{}

var (
	LocaleKey  = localeContextKey{}
	CountryKey = countryContextKey{}
)

// SupportedLocales are the UI languages; the first is the fallback.
var SupportedLocales = []language.Tag{
	language.English,
	language.Spanish,
	language.Chinese,
	language.German,
	language.French,
	language.Japanese,
	language.Korean,
}

var localeMatcher = language.NewMatcher(SupportedLocales)

var countryLocales = map[string]language.Tag{
	"CN": language.Chinese, "TW": language.Chinese, "HK": language.Chinese, "MO": language.Chinese, "SG": language.Chinese,
	"JP": language.Japanese,
	"KR": language.Korean,
	"DE": language.German, "AT": language.German, "CH": language.German,
	"FR": language.French, "BE": language.French, "LU": language.French,
	"ES": language.Spanish, "MX": language.Spanish, "AR": language.Spanish, "CO": language.Spanish, "CL": language.Spanish, "PE": language.Spanish,
}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the negotiated locale and the caller's country in the request context.
func I18N(defaultLocale string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := MatchLocale(defaultLocale)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			ctx := WithLocale(r.Context(), detectLocale(r, fallback, country))
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, strings.ToUpper(country))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// detectLocale prefers X-Locale, then Accept-Language, then the country.
func detectLocale(r *http.Request, fallback language.Tag, country string) language.Tag {
	if v := strings.TrimSpace(r.Header.Get("X-Locale")); v != "" {
		if tag, ok := match(v); ok {
			return tag
		}
	}
	if v := r.Header.Get("Accept-Language"); v != "" {
		if tag, ok := match(v); ok {
			return tag
		}
	}
	if tag, ok := countryLocales[strings.ToUpper(country)]; ok {
		return tag
	}
	return fallback
}

// MatchLocale maps any BCP 47 string or Accept-Language value to a
// supported locale, defaulting to English.
func MatchLocale(raw string) language.Tag {
	if tag, ok := match(raw); ok {
		return tag
	}
	return SupportedLocales[0]
}

func match(raw string) (language.Tag, bool) {
	tags, _, err := language.ParseAcceptLanguage(raw)
	if err != nil || len(tags) == 0 {
		return language.Und, false
	}
	// The matcher answers unsupported languages with its default tag, so a
	// match only counts when it keeps the requested base language.
	for _, want := range tags {
		base, bconf := want.Base()
		if bconf == language.No {
			continue
		}
		_, idx, conf := localeMatcher.Match(want)
		if conf == language.No {
			continue
		}
		if got, _ := SupportedLocales[idx].Base(); got == base {
			return SupportedLocales[idx], true
		}
	}
	return language.Und, false
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// WithLocale returns ctx carrying tag.
func WithLocale(ctx context.Context, tag language.Tag) context.Context {
	return context.WithValue(ctx, LocaleKey, tag)
}

// LocaleFromContext returns the negotiated locale, English when unset.
func LocaleFromContext(ctx context.Context) language.Tag {
	if v, ok := ctx.Value(LocaleKey).(language.Tag); ok {
		return v
	}
	return language.English
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country", "X-Vercel-IP-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if region := localeRegion(r.Header.Get("X-Locale")); region != "" {
		return region
	}
	if region := localeRegion(r.Header.Get("Accept-Language")); region != "" {
		return region
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}

// localeRegion returns the explicit region subtag of the first language
// range, ignoring script subtags such as Hans.
func localeRegion(accept string) string {
	for _, part := range strings.Split(accept, ",") {
		token := strings.TrimSpace(strings.Split(part, ";")[0])
		if token == "" {
			continue
		}
		tag, err := language.Parse(token)
		if err != nil {
			return ""
		}
		if region, conf := tag.Region(); conf == language.Exact {
			return region.String()
		}
		return ""
	}
	return ""
}
