package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meetup-ops/backend/config"
)

// discordMaxContent is Discord's message length limit.
const discordMaxContent = 2000

// ErrDiscordNotConfigured is returned when no bot token or channel is set.
var ErrDiscordNotConfigured = errors.New("discord not configured")

// DiscordSender posts messages to a channel with a bot token.
type DiscordSender struct {
	baseURL        string
	token          string
	defaultChannel string
	client         *http.Client
}

// NewDiscordSender creates a Discord sender. client may be nil.
func NewDiscordSender(cfg config.DiscordConfig, client *http.Client) *DiscordSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordSender{
		baseURL:        strings.TrimRight(cfg.APIBaseURL, "/"),
		token:          cfg.BotToken,
		defaultChannel: cfg.DefaultChannelID,
		client:         client,
	}
}

// Send posts content to channelID, or to the default channel when channelID is empty.
func (d *DiscordSender) Send(ctx context.Context, channelID, content string) error {
	if channelID == "" {
		channelID = d.defaultChannel
	}
	if d.token == "" || channelID == "" {
		return ErrDiscordNotConfigured
	}
	if len(content) > discordMaxContent {
		content = content[:discordMaxContent-3] + "..."
	}
	payload, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discord status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
