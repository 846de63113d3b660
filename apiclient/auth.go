package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/session"
)

const MePath = "/api/dashboard/auth/me/"

// LoginResponse is the body returned by the login endpoint. Older backends
// name the access token "token".
type LoginResponse struct {
	Access  string        `json:"access"`
	Token   string        `json:"token"`
	Refresh string        `json:"refresh"`
	User    *session.User `json:"user"`
}

// AccessToken returns whichever of access or token is set.
func (r LoginResponse) AccessToken() string {
	if r.Access != "" {
		return r.Access
	}
	return r.Token
}

// Login exchanges credentials for tokens and records the session. When the
// response carries no user, it is fetched from the me endpoint.
func (c *Client) Login(ctx context.Context, email, password string) (*session.User, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("[apiclient Login] %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("[apiclient Login] %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.language != nil {
		req.Header.Set("Accept-Language", c.language.Current())
	}

	// login goes around Do: a 401 here means bad credentials, not a stale token
	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("[apiclient Login] %w", err)
	}
	defer res.Body.Close()

	var body LoginResponse
	if err := c.decode(res, &body); err != nil {
		return nil, err
	}
	access := body.AccessToken()
	if access == "" {
		return nil, errors.Wrapf(errors.ErrUnauthorized, "[apiclient Login] response has no access token")
	}

	if err := c.session.Login(ctx, access, body.Refresh, body.User); err != nil {
		return nil, fmt.Errorf("[apiclient Login] store session: %w", err)
	}

	user := body.User
	if user == nil {
		user, err = c.Me(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.session.SetUser(ctx, user); err != nil {
			return nil, fmt.Errorf("[apiclient Login] store user: %w", err)
		}
	}
	c.logger.Info().Str("email", user.Email).Msg("apiclient: logged in")
	return user, nil
}

// Me returns the identity of the current session as seen by the server.
func (c *Client) Me(ctx context.Context) (*session.User, error) {
	var u session.User
	if err := c.GetJSON(ctx, MePath, &u); err != nil {
		return nil, err
	}
	return &u, nil
}
