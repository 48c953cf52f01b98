package driven

import (
	"context"
	"strings"

	"github.com/ericfisherdev/mmpresence/internal/domain/model"
)

// CookieSource enumerates the browser cookies visible to a host.
type CookieSource interface {
	Cookies(ctx context.Context, host string) ([]model.Cookie, error)
}

// CookieSourceFunc adapts a function to the CookieSource interface.
type CookieSourceFunc func(ctx context.Context, host string) ([]model.Cookie, error)

// Cookies calls f(ctx, host).
func (f CookieSourceFunc) Cookies(ctx context.Context, host string) ([]model.Cookie, error) {
	return f(ctx, host)
}

// StaticCookies is a CookieSource over a cookie set delivered together with an
// observation. Cookies whose Domain does not domain-match the host are dropped;
// cookies without a Domain are kept.
type StaticCookies []model.Cookie

// Cookies returns the cookies in s that apply to host.
func (s StaticCookies) Cookies(_ context.Context, host string) ([]model.Cookie, error) {
	out := make([]model.Cookie, 0, len(s))
	for _, c := range s {
		if c.Domain == "" || DomainMatch(host, c.Domain) {
			out = append(out, c)
		}
	}
	return out, nil
}

// DomainMatch reports whether a cookie with the given Domain attribute is sent
// to host (RFC 6265 section 5.1.3). A leading dot on domain is ignored.
func DomainMatch(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	if host == domain {
		return true
	}
	return strings.HasSuffix(host, "."+domain)
}
