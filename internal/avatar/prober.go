package avatar

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
)

// Prober checks that an image URL is being served
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber issues HEAD requests. 2xx and 3xx count as available; redirects
// are not followed.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber uses a pooled client. Per-probe timeouts come from the context.
func NewHTTPProber() *HTTPProber {
	client := cleanhttp.DefaultPooledClient()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HTTPProber{client: client}
}

func (p *HTTPProber) Probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		return nil
	}
	return fmt.Errorf("probe %s: status %d", url, resp.StatusCode)
}
