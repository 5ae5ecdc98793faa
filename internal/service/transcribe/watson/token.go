package watson

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// token fetches a short-lived session token from the authorization endpoint
// using basic auth. The token is scoped to the speech-to-text API base URL.
func (d *Dialer) token(ctx context.Context) (string, error) {
	u, err := url.Parse(d.cfg.TokenURL)
	if err != nil {
		return "", fmt.Errorf("parse token url: %w", err)
	}
	q := u.Query()
	q.Set("url", d.cfg.ResourceURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(d.cfg.Username, d.cfg.Password)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token endpoint returned %s: %s", resp.Status, body)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
