// Package proxy decides when a media URL needs a cross-origin proxy and
// rewrites it through a rotating list of proxy endpoints.
package proxy

import (
	"errors"
	"net/url"
	"strings"
)

// Placeholder marks where the encoded target URL goes in an endpoint template.
const Placeholder = "{url}"

// DefaultEndpoints are used when no proxy list is configured.
var DefaultEndpoints = []string{
	"https://corsproxy.io/?url={url}",
	"https://api.allorigins.win/raw?url={url}",
	"https://api.codetabs.com/v1/proxy?quest={url}",
}

// ErrExhausted is returned once every endpoint has been tried for a target.
var ErrExhausted = errors.New("all proxy endpoints attempted")

// Resolver holds the application origin and an ordered list of endpoint templates.
// It is immutable after construction.
type Resolver struct {
	originHost string
	endpoints  []string
}

// NewResolver creates a Resolver for an application served from origin.
// Templates without a placeholder are dropped. A nil endpoints slice selects
// DefaultEndpoints.
func NewResolver(origin string, endpoints []string) *Resolver {
	if endpoints == nil {
		endpoints = DefaultEndpoints
	}

	valid := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if strings.Contains(e, Placeholder) {
			valid = append(valid, e)
		}
	}

	return &Resolver{
		originHost: hostOf(origin),
		endpoints:  valid,
	}
}

// Len returns the number of usable endpoints.
func (r *Resolver) Len() int {
	return len(r.endpoints)
}

// Endpoints returns a copy of the endpoint templates in rotation order.
func (r *Resolver) Endpoints() []string {
	return append([]string(nil), r.endpoints...)
}

// NeedsProxy reports whether rawURL points at a host other than the origin.
// Relative, blob: and data: URLs never need a proxy.
func (r *Resolver) NeedsProxy(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	lower := strings.ToLower(rawURL)
	if strings.HasPrefix(lower, "blob:") || strings.HasPrefix(lower, "data:") {
		return false
	}

	host := hostOf(rawURL)
	if host == "" {
		return false
	}
	return host != r.originHost
}

// Proxied wraps rawURL into the endpoint selected by attempt modulo the list
// length. With no endpoints configured rawURL is returned unchanged.
func (r *Resolver) Proxied(rawURL string, attempt int) string {
	if len(r.endpoints) == 0 {
		return rawURL
	}
	if attempt < 0 {
		attempt = -attempt
	}

	template := r.endpoints[attempt%len(r.endpoints)]
	return strings.ReplaceAll(template, Placeholder, encode(rawURL))
}

// encode percent-encodes like encodeURIComponent for the characters that
// matter inside a query value.
func encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
