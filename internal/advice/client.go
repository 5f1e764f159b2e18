package advice

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"nutrichat/internal/apiclient"
)

// Request is the body of POST /api/advice.
type Request struct {
	Prompt string `json:"prompt"`
}

// Response is its answer. Exactly one field is set.
type Response struct {
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// Client asks the nutrichat backend for advice.
type Client struct {
	api *apiclient.Client
}

func NewClient(api *apiclient.Client) *Client {
	return &Client{api: api}
}

func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var resp Response
	if err := c.api.Do(ctx, http.MethodPost, "/api/advice", Request{Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("advice service: %s", resp.Error)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("advice service: %w: empty text", ErrMalformedResponse)
	}
	return resp.Text, nil
}
