package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Stewart86/bobby/internal/reliability"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"
	// maxMessageLen is the platform limit for one message body.
	maxMessageLen = 2000

	restRetryMax  = 3
	restRetryBase = 250 * time.Millisecond
	restRetryCap  = 2 * time.Second
)

// RESTClient talks to the platform HTTP API on behalf of the bot user.
type RESTClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewRESTClient(token string) *RESTClient {
	return &RESTClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
		token:      strings.TrimSpace(token),
	}
}

// WithBaseURL points the client at a different API root. Used by tests.
func (c *RESTClient) WithBaseURL(baseURL string) *RESTClient {
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// SendMessage posts content to a channel, splitting bodies that exceed the
// platform limit into sequential messages so ordering is preserved.
func (c *RESTClient) SendMessage(ctx context.Context, channelID, content string) error {
	for _, part := range splitMessage(content) {
		body := map[string]string{"content": part}
		if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", body, nil); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

// EditMessage replaces the content of a previously sent message.
func (c *RESTClient) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	body := map[string]string{"content": content}
	path := "/channels/" + channelID + "/messages/" + messageID
	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// CreateThread starts a thread off an existing message.
func (c *RESTClient) CreateThread(ctx context.Context, channelID, messageID, name string) (Channel, error) {
	body := map[string]any{
		"name":                  name,
		"auto_archive_duration": 1440,
	}
	var ch Channel
	path := "/channels/" + channelID + "/messages/" + messageID + "/threads"
	if err := c.do(ctx, http.MethodPost, path, body, &ch); err != nil {
		return Channel{}, fmt.Errorf("create thread: %w", err)
	}
	return ch, nil
}

// SetChannelName renames a channel or thread.
func (c *RESTClient) SetChannelName(ctx context.Context, channelID, name string) error {
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPatch, "/channels/"+channelID, body, nil); err != nil {
		return fmt.Errorf("set channel name: %w", err)
	}
	return nil
}

// TriggerTyping shows the typing indicator in a channel for a few seconds.
func (c *RESTClient) TriggerTyping(ctx context.Context, channelID string) error {
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/typing", nil, nil); err != nil {
		return fmt.Errorf("trigger typing: %w", err)
	}
	return nil
}

// Channel fetches channel state, including thread names.
func (c *RESTClient) Channel(ctx context.Context, channelID string) (Channel, error) {
	var ch Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &ch); err != nil {
		return Channel{}, fmt.Errorf("fetch channel: %w", err)
	}
	return ch, nil
}

// LeaveGuild removes the bot from a conversation space.
func (c *RESTClient) LeaveGuild(ctx context.Context, guildID string) error {
	if err := c.do(ctx, http.MethodDelete, "/users/@me/guilds/"+guildID, nil, nil); err != nil {
		return fmt.Errorf("leave guild: %w", err)
	}
	return nil
}

func (c *RESTClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= restRetryMax; attempt++ {
		if attempt > 0 {
			wait := reliability.ExponentialBackoff(attempt-1, restRetryBase, restRetryCap)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bot "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if out != nil {
				err = json.NewDecoder(resp.Body).Decode(out)
			}
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
			return nil
		}

		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		lastErr = fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
		if !reliability.IsRetryableHTTPStatus(resp.StatusCode) {
			return lastErr
		}
	}
	return lastErr
}

// splitMessage cuts content into platform-sized parts, preferring newline
// boundaries so code blocks and lists stay readable.
func splitMessage(content string) []string {
	if len(content) <= maxMessageLen {
		return []string{content}
	}
	var parts []string
	for len(content) > maxMessageLen {
		cut := strings.LastIndexByte(content[:maxMessageLen], '\n')
		if cut < maxMessageLen/2 {
			cut = maxMessageLen
		}
		parts = append(parts, content[:cut])
		content = strings.TrimLeft(content[cut:], "\n")
	}
	if content != "" {
		parts = append(parts, content)
	}
	return parts
}
