package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cryptotracker/marketview/internal/fetch"
	"github.com/cryptotracker/marketview/internal/version"
)

// get issues a GET under the logical key and decodes the JSON body into result.
// Decode failures are reported as fetch.KindFailed.
func (c *Client) get(ctx context.Context, key, path string, query url.Values, result any) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	header.Set("User-Agent", version.UserAgent())
	if c.apiKey != "" {
		header.Set(c.keyHeader, c.apiKey)
	}

	body, err := c.gateway.Fetch(ctx, key, fetch.Request{
		Method: http.MethodGet,
		URL:    fullURL,
		Header: header,
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fetch.Failed(key, fmt.Errorf("unmarshal response: %w", err))
	}

	return nil
}
