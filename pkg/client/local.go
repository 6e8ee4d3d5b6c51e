package client

import (
	"context"

	"github.com/perimetra/perimetra/internal/api"
)

// LocalLogin logs in at the local service. The session cookie lands in the
// client's cookie jar and rides along on subsequent local calls.
func (c *Client) LocalLogin(ctx context.Context, username, password string) (*api.LocalLoginResponse, string, error) {
	payload := api.LocalLoginPayload{
		Username: username,
		Password: password,
	}
	var resp api.LocalLoginResponse
	correlation, err := c.post(ctx, c.url().setPath(api.LocalLoginRoute).build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// LocalResource fetches the session-protected local resource.
func (c *Client) LocalResource(ctx context.Context) (*api.LocalResourceResponse, string, error) {
	var resp api.LocalResourceResponse
	correlation, err := c.get(ctx, c.url().setPath(api.LocalResourceRoute).build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// LocalAdmin fetches the admin-gated local resource.
func (c *Client) LocalAdmin(ctx context.Context) (*api.LocalResourceResponse, string, error) {
	var resp api.LocalResourceResponse
	correlation, err := c.get(ctx, c.url().setPath(api.LocalAdminRoute).build(), &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}
