package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/perimetra/perimetra/internal/api"
)

// CheckResult is the outcome of a resource access check.
type CheckResult struct {
	// Effect is "allow", "challenge" or "deny".
	Effect string

	// Reason is the machine-readable decision reason.
	Reason string

	Subject string
	Role    string
}

// Check asks the resource API for an access decision on path. A 403 is
// reported as a deny result, not as an error; only transport and auth
// failures surface as errors.
func (c *Client) Check(ctx context.Context, path string) (*CheckResult, string, error) {
	var resp api.DecisionResponse
	correlation, err := c.get(ctx, c.url().setPath(path).build(), &resp)
	if err != nil {
		var apiErr APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
			return &CheckResult{
				Effect: "deny",
				Reason: apiErr.Message,
			}, correlation, nil
		}
		return nil, correlation, err
	}

	result := &CheckResult{
		Reason:  resp.Reason,
		Subject: resp.Subject,
		Role:    resp.Role,
	}
	if resp.Status == "mfa_required" {
		result.Effect = "challenge"
	} else {
		result.Effect = "allow"
	}
	return result, correlation, nil
}
