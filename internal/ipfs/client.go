// Package ipfs resolves ad content references through an IPFS HTTP gateway.
// Consumed by the read surface so the renderer receives a resolved ad; the
// core engine treats refs as opaque strings.
package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// AdContent is the displayable document a content ref resolves to.
type AdContent struct {
	URL   string `json:"url"`
	Image string `json:"image"`
}

// Client fetches ad content documents from a gateway.
type Client struct {
	gatewayURL string
	http       *http.Client
}

func NewClient(gatewayURL string) *Client {
	return &Client{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		http:       &http.Client{Timeout: 15 * time.Second},
	}
}

// GatewayURL translates an ipfs:// ref to a fetchable gateway URL. Plain
// http(s) refs pass through unchanged.
func (c *Client) GatewayURL(ref string) string {
	if strings.HasPrefix(ref, "ipfs://") {
		return c.gatewayURL + "/ipfs/" + strings.TrimPrefix(ref, "ipfs://")
	}
	return ref
}

// Resolve fetches and decodes the content document behind a ref.
func (c *Client) Resolve(ctx context.Context, ref string) (*AdContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.GatewayURL(ref), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ipfs fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ipfs fetch %s: status %d", ref, resp.StatusCode)
	}
	var doc AdContent
	return &doc, json.NewDecoder(resp.Body).Decode(&doc)
}
