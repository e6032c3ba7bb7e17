package external

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Prober checks whether repositories are reachable
type Prober struct {
	client *retryablehttp.Client
}

// NewProber creates a prober with the given per-attempt timeout and retry
// count
func NewProber(timeout time.Duration, retries int) *Prober {
	client := retryablehttp.NewClient()
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil
	return &Prober{client: client}
}

// Probe sends a HEAD request for the repository's signed index and reports
// whether it answered 200 or 304
func (p *Prober) Probe(ctx context.Context, repoURL string) error {
	indexURL := strings.TrimSuffix(repoURL, "/") + "/index-v1.jar"

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, indexURL, nil)
	if err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotModified:
		return nil
	default:
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
}
