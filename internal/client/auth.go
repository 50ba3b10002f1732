package client

import (
	"context"
	"net/http"

	"github.com/mind-engage/labeld/internal/dataset"
)

type Credentials struct {
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password"`
}

type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is the body of /auth/login and /auth/register.
type AuthResult struct {
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    dataset.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, r Registration) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/register", r, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, cr Credentials) (AuthResult, error) {
	var out AuthResult
	err := c.do(ctx, http.MethodPost, "/auth/login", cr, &out)
	return out, err
}

// Me resolves the user owning the client's token.
func (c *Client) Me(ctx context.Context) (dataset.User, error) {
	var out struct {
		User dataset.User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out.User, err
}
