package api

import (
	"context"
	"net/http"
	"net/url"
)

// Login exchanges credentials for an access token. The backend expects an
// OAuth2 password form, not JSON. The returned token is not installed on
// the client; callers persist it and call SetToken.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	var out LoginResult
	if err := c.do(ctx, http.MethodPost, "/v1/auth/login", nil, formBody(form), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a user account and returns the public user record.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	body, err := jsonBody(in)
	if err != nil {
		return nil, err
	}
	var out User
	if err := c.doOnce(ctx, http.MethodPost, "/v1/users/register", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
