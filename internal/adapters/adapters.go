// Package adapters contains the concrete upstream clients behind the
// marketdata provider chain. Each adapter normalizes its provider's wire
// format into marketdata.Bar / marketdata.Price, carries its own client-side
// rate limiter, and reports failures as plain errors for the chain to absorb.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// doGetJSON issues a GET and decodes the JSON body into v. Non-2xx responses
// become errors carrying the status and a body prefix for log context.
func doGetJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "prophet-engine/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
