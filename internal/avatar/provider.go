package avatar

import (
	"fmt"
	"net/url"
	"strings"
)

// Provider builds a deterministic image URL for a seed
type Provider interface {
	ID() string
	URL(seed string) string
	// Remote providers are probed before use. A local provider cannot fail.
	Remote() bool
}

type remoteProvider struct {
	id    string
	build func(seed string) string
}

func (p remoteProvider) ID() string             { return p.id }
func (p remoteProvider) URL(seed string) string { return p.build(seed) }
func (p remoteProvider) Remote() bool           { return true }

// Robohash serves robot-themed images
func Robohash() Provider {
	return remoteProvider{id: "robohash", build: func(seed string) string {
		return "https://robohash.org/" + url.PathEscape(seed) + ".png?set=set1&size=256x256"
	}}
}

// Dicebear serves generic generated avatars
func Dicebear() Provider {
	return remoteProvider{id: "dicebear", build: func(seed string) string {
		return "https://api.dicebear.com/7.x/bottts/svg?seed=" + url.QueryEscape(seed)
	}}
}

// NewRemoteProvider builds a provider from a URL template containing "{seed}"
func NewRemoteProvider(id, template string) Provider {
	return remoteProvider{id: id, build: func(seed string) string {
		return strings.ReplaceAll(template, "{seed}", url.QueryEscape(seed))
	}}
}

type placeholder struct {
	baseURL string
}

// Placeholder is a static image served by this service. It is never probed.
func Placeholder(baseURL string) Provider {
	return placeholder{baseURL: strings.TrimRight(baseURL, "/")}
}

func (p placeholder) ID() string   { return "placeholder" }
func (p placeholder) Remote() bool { return false }
func (p placeholder) URL(seed string) string {
	return p.baseURL + "/static/avatars/placeholder.svg?seed=" + url.QueryEscape(seed)
}

// DefaultProviders is the standard order: robot-themed, generic, placeholder
func DefaultProviders(baseURL string) []Provider {
	return []Provider{Robohash(), Dicebear(), Placeholder(baseURL)}
}

// ParseProviders builds a chain from configured entries, each either a known
// provider name or "name=template" with an http(s) URL template containing
// "{seed}". The placeholder is appended as the terminal provider.
func ParseProviders(entries []string, baseURL string) ([]Provider, error) {
	if len(entries) == 0 {
		return DefaultProviders(baseURL), nil
	}
	out := make([]Provider, 0, len(entries)+1)
	seen := make(map[string]bool)
	for _, entry := range entries {
		p, err := parseProvider(strings.TrimSpace(entry))
		if err != nil {
			return nil, err
		}
		if seen[p.ID()] {
			return nil, fmt.Errorf("avatar provider %q listed twice", p.ID())
		}
		seen[p.ID()] = true
		out = append(out, p)
	}
	return append(out, Placeholder(baseURL)), nil
}

func parseProvider(entry string) (Provider, error) {
	id, template, custom := strings.Cut(entry, "=")
	id = strings.ToLower(strings.TrimSpace(id))
	if !custom {
		switch id {
		case "robohash":
			return Robohash(), nil
		case "dicebear":
			return Dicebear(), nil
		default:
			return nil, fmt.Errorf("unknown avatar provider %q", id)
		}
	}

	template = strings.TrimSpace(template)
	if id == "" || id == "placeholder" {
		return nil, fmt.Errorf("invalid avatar provider name in %q", entry)
	}
	u, err := url.Parse(strings.ReplaceAll(template, "{seed}", "seed"))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("avatar provider %s: template must be an http(s) URL", id)
	}
	if !strings.Contains(template, "{seed}") {
		return nil, fmt.Errorf("avatar provider %s: template has no {seed}", id)
	}
	return NewRemoteProvider(id, template), nil
}
