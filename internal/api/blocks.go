package api

import (
	"context"
	"encoding/json"
	"fmt"

	"blocklag/internal/model"
)

// GetLastBlockHeader returns the newest block header visible under mode.
// The monitor uses it once per session to resolve the walk's starting
// height.
func (c *Client) GetLastBlockHeader(ctx context.Context, mode model.Mode) (*model.BlockHeader, error) {
	path := fmt.Sprintf("/v0/last_block/%s/headers", mode)

	var resp blockResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	h := resp.Header
	if h == nil || h.Height == 0 || h.Height > model.MaxBlockHeight {
		return nil, fmt.Errorf("last_block/%s: no usable header in response", mode)
	}
	return h, nil
}

// GetBlockHeader returns the header for a single height under mode, or
// (nil, nil) when the chain has no block at that height. Skipped heights
// come back from the API as a JSON null body.
func (c *Client) GetBlockHeader(ctx context.Context, mode model.Mode, height uint64) (*model.BlockHeader, error) {
	path := fmt.Sprintf("/v0/%s/%d/headers", mode.BlockPath(), height)

	body, err := c.doWithRetry(ctx, path)
	if err != nil {
		return nil, err
	}

	var resp *blockResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if resp == nil || resp.Header == nil {
		return nil, nil
	}
	return resp.Header, nil
}
