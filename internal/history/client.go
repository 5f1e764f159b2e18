package history

import (
	"context"
	"net/http"

	"nutrichat/internal/apiclient"
	"nutrichat/internal/models"
)

// Client reads and writes history through the nutrichat backend. The identity
// passed to each call is ignored; the api client's token decides the user.
type Client struct {
	api *apiclient.Client
}

func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// Sessions returns the history grouped the way the backend serves it.
func (c *Client) Sessions(ctx context.Context) ([]models.TurnSession, error) {
	var sessions []models.TurnSession
	if err := c.api.Do(ctx, http.MethodGet, "/api/chat/history", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (c *Client) ListTurns(ctx context.Context, identity models.Identity) ([]models.Turn, error) {
	sessions, err := c.Sessions(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten(sessions), nil
}

func (c *Client) SaveTurn(ctx context.Context, identity models.Identity, turn models.TurnInput) error {
	return c.api.Do(ctx, http.MethodPost, "/api/chat/save-message", turn, nil)
}
