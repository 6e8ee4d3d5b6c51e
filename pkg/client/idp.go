package client

import (
	"context"

	"github.com/perimetra/perimetra/internal/api"
	"github.com/perimetra/perimetra/internal/buildinfo"
	"github.com/perimetra/perimetra/internal/core"
)

// Login exchanges a credential for an access token at the identity issuer.
func (c *Client) Login(ctx context.Context, username, password, deviceID string) (*api.TokenResponse, string, error) {
	payload := api.LoginPayload{
		Username: username,
		Password: password,
		DeviceID: deviceID,
	}
	var resp api.TokenResponse
	correlation, err := c.post(ctx, c.url().setPath(api.LoginRoute).build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// ListActiveTokens retrieves the records of still-active issued tokens.
func (c *Client) ListActiveTokens(ctx context.Context) ([]core.TokenRecord, error) {
	var resp []core.TokenRecord
	_, err := c.get(ctx, c.url().setPath(api.TokensRoute).build(), &resp)
	return resp, err
}

// Info fetches service build information.
func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().setPath(api.AboutRoute).build(), &info)
	return &info, correlation, err
}
