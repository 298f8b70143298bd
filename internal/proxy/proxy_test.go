package proxy

import (
	"strings"
	"testing"
)

func TestNeedsProxy(t *testing.T) {
	r := NewResolver("https://myapp.com", nil)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://other-host.com/a.mp4", true},
		{"/local/a.mp4", false},
		{"local/a.mp4", false},
		{"https://myapp.com/a.mp4", false},
		{"https://MYAPP.com:8443/a.mp4", false},
		{"http://myapp.com/a.mp4", false},
		{"https://cdn.myapp.com/a.mp4", true},
		{"blob:https://myapp.com/1234", false},
		{"data:video/mp4;base64,AAAA", false},
		{"DATA:video/mp4;base64,AAAA", false},
		{"http://[::1", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := r.NeedsProxy(tt.url); got != tt.expected {
				t.Errorf("NeedsProxy(%q) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestNeedsProxyWithoutOrigin(t *testing.T) {
	r := NewResolver("", nil)
	if !r.NeedsProxy("https://cdn.example/a.mp4") {
		t.Error("absolute URL should need a proxy when no origin is set")
	}
}

func TestProxiedRotation(t *testing.T) {
	r := NewResolver("https://myapp.com", []string{
		"https://p0.example/?u={url}",
		"https://p1.example/fetch/{url}",
	})

	target := "https://cdn.example/a b.mp4?x=1&y=2"
	encoded := "https%3A%2F%2Fcdn.example%2Fa%20b.mp4%3Fx%3D1%26y%3D2"

	tests := []struct {
		attempt  int
		expected string
	}{
		{0, "https://p0.example/?u=" + encoded},
		{1, "https://p1.example/fetch/" + encoded},
		{2, "https://p0.example/?u=" + encoded},
		{3, "https://p1.example/fetch/" + encoded},
	}

	for _, tt := range tests {
		if got := r.Proxied(target, tt.attempt); got != tt.expected {
			t.Errorf("Proxied(attempt %d) = %q, want %q", tt.attempt, got, tt.expected)
		}
	}
}

func TestProxiedDeterministic(t *testing.T) {
	r := NewResolver("https://myapp.com", nil)
	for i := 0; i < 10; i++ {
		if r.Proxied("https://a.example/v.mp4", i) != r.Proxied("https://a.example/v.mp4", i) {
			t.Fatalf("Proxied not deterministic for attempt %d", i)
		}
	}
}

func TestProxiedNoEndpoints(t *testing.T) {
	r := NewResolver("https://myapp.com", []string{})
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
	if got := r.Proxied("https://a.example/v.mp4", 1); got != "https://a.example/v.mp4" {
		t.Errorf("Proxied() = %q, want input unchanged", got)
	}
}

func TestNewResolverDropsInvalidTemplates(t *testing.T) {
	r := NewResolver("", []string{"https://no-placeholder.example/", "https://ok.example/{url}"})
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if !strings.HasPrefix(r.Proxied("https://a.example/", 0), "https://ok.example/") {
		t.Error("expected the remaining template to be used")
	}
}

func TestEndpointsReturnsCopy(t *testing.T) {
	r := NewResolver("", nil)
	eps := r.Endpoints()
	eps[0] = "mutated"
	if r.Endpoints()[0] == "mutated" {
		t.Error("Endpoints() exposed internal slice")
	}
}
