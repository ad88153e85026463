// Package whatsapp is the outbound side of the messaging gateway: every
// send goes to the instance-specific API with that instance's credentials.
// Delivery failures are returned to the caller, never swallowed.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/config"
)

// Sender is the outbound contract consumed by the bot engine and the
// follow-up scheduler. A fake implementation backs the tests.
type Sender interface {
	SendText(ctx context.Context, instance config.Instance, phone, body string) error
	SendImage(ctx context.Context, instance config.Instance, phone, url, caption string) error
	SendAudio(ctx context.Context, instance config.Instance, phone, url string) error
	SendDocument(ctx context.Context, instance config.Instance, phone, url, filename, caption string) error
	SendVideo(ctx context.Context, instance config.Instance, phone, url, caption string) error
}

type Client struct {
	http *http.Client
}

func NewClient() *Client {
	return &Client{http: &http.Client{Timeout: 30 * time.Second}}
}

type textPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type mediaPayload struct {
	Number   string `json:"number"`
	MediaURL string `json:"media_url"`
	Type     string `json:"type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

func (c *Client) SendText(ctx context.Context, instance config.Instance, phone, body string) error {
	return c.post(ctx, instance, "/message/text", textPayload{Number: phone, Text: body})
}

func (c *Client) SendImage(ctx context.Context, instance config.Instance, phone, url, caption string) error {
	return c.post(ctx, instance, "/message/media", mediaPayload{Number: phone, MediaURL: url, Type: "image", Caption: caption})
}

func (c *Client) SendAudio(ctx context.Context, instance config.Instance, phone, url string) error {
	return c.post(ctx, instance, "/message/media", mediaPayload{Number: phone, MediaURL: url, Type: "audio"})
}

func (c *Client) SendDocument(ctx context.Context, instance config.Instance, phone, url, filename, caption string) error {
	return c.post(ctx, instance, "/message/media", mediaPayload{Number: phone, MediaURL: url, Type: "document", Filename: filename, Caption: caption})
}

func (c *Client) SendVideo(ctx context.Context, instance config.Instance, phone, url, caption string) error {
	return c.post(ctx, instance, "/message/media", mediaPayload{Number: phone, MediaURL: url, Type: "video", Caption: caption})
}

func (c *Client) post(ctx context.Context, instance config.Instance, path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, instance.APIURL+path, bytes.NewBuffer(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+instance.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("gateway error: %s - %s", resp.Status, string(body))
	}
	return nil
}
