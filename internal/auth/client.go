package auth

import (
	"context"
	"net/http"

	"nutrichat/internal/apiclient"
	"nutrichat/internal/models"
)

// Credentials is the body of the register and login endpoints.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is what the login endpoint returns.
type LoginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Client signs in against the nutrichat backend.
type Client struct {
	api *apiclient.Client
}

func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Authenticate logs in and returns the identity a chat session runs as.
func (c *Client) Authenticate(ctx context.Context, username, password string) (models.Identity, error) {
	var resp LoginResponse
	if err := c.api.Do(ctx, http.MethodPost, "/api/auth/login", Credentials{Username: username, Password: password}, &resp); err != nil {
		return models.Identity{}, err
	}
	if resp.Token == "" {
		return models.Identity{}, ErrInvalidToken
	}
	return models.Identity{UserID: resp.User.ID, Username: resp.User.Username, Token: resp.Token}, nil
}

func (c *Client) Register(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := c.api.Do(ctx, http.MethodPost, "/api/auth/register", Credentials{Username: username, Password: password}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes the token the api client carries.
func (c *Client) Logout(ctx context.Context) error {
	return c.api.Do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}
