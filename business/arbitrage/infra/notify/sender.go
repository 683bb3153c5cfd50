// Package notify sends operator alerts for trades that need attention.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/prediction-arb/internal/apperror"
	"github.com/fd1az/prediction-arb/internal/httpclient"
)

const (
	// DefaultTelegramURL is the Telegram Bot API base URL.
	DefaultTelegramURL = "https://api.telegram.org"

	defaultTimeout = 10 * time.Second
)

// Alert is one operator message.
type Alert struct {
	Title string
	Body  string
}

// Text renders the alert as plain text.
func (a Alert) Text() string {
	return a.Title + "\n\n" + a.Body
}

// Sender delivers alerts to one channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

func newHTTPClient(name, baseURL string, timeout time.Duration) (*httpclient.InstrumentedClient, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []httpclient.ClientOption{
		httpclient.WithProviderName(name),
		httpclient.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		opts = append(opts, httpclient.WithBaseURL(baseURL))
	}
	client, err := httpclient.NewInstrumentedClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create %s http client: %w", name, err)
	}
	return client, nil
}

func statusHandler(channel string) httpclient.ResponseErrorHandler {
	return func(resp *httpclient.Response) error {
		if resp.StatusCode < 300 {
			return nil
		}
		return apperror.New(apperror.CodeNotificationFailed,
			apperror.WithStatusCode(resp.StatusCode),
			apperror.WithContext(fmt.Sprintf("%s: HTTP %d: %s", channel, resp.StatusCode, resp.String())))
	}
}

func sendFailed(channel string, err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.New(apperror.CodeNotificationFailed, apperror.WithContext(channel), apperror.WithCause(err))
}

// TelegramSender posts alerts through a Telegram bot.
type TelegramSender struct {
	http   *httpclient.InstrumentedClient
	token  string
	chatID string
}

// NewTelegramSender creates a TelegramSender. baseURL defaults to the public Bot API.
func NewTelegramSender(baseURL, token, chatID string, timeout time.Duration) (*TelegramSender, error) {
	if token == "" || chatID == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("telegram token and chat id are required"))
	}
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}
	client, err := newHTTPClient("telegram", baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{http: client, token: token, chatID: chatID}, nil
}

func (s *TelegramSender) Name() string { return "telegram" }

type telegramMessage struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts the alert with sendMessage.
func (s *TelegramSender) Send(ctx context.Context, alert Alert) error {
	var resp telegramResponse
	_, err := s.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "sendMessage")),
		httpclient.WithResponseErrorHandler(statusHandler("telegram")),
	).
		SetBody(telegramMessage{ChatID: s.chatID, Text: alert.Text(), DisableWebPagePreview: true}).
		SetResult(&resp).
		Post(ctx, "/bot"+s.token+"/sendMessage")
	if err != nil {
		return sendFailed("telegram", err)
	}
	if !resp.OK {
		return apperror.New(apperror.CodeNotificationFailed, apperror.WithContext("telegram: "+resp.Description))
	}
	return nil
}

// DiscordSender posts alerts to a Discord webhook.
type DiscordSender struct {
	http       *httpclient.InstrumentedClient
	webhookURL string
}

// NewDiscordSender creates a DiscordSender.
func NewDiscordSender(webhookURL string, timeout time.Duration) (*DiscordSender, error) {
	if webhookURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("discord webhook url is required"))
	}
	client, err := newHTTPClient("discord", "", timeout)
	if err != nil {
		return nil, err
	}
	return &DiscordSender{http: client, webhookURL: webhookURL}, nil
}

func (s *DiscordSender) Name() string { return "discord" }

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

const discordRed = 0xE74C3C

// Send posts the alert as a single embed.
func (s *DiscordSender) Send(ctx context.Context, alert Alert) error {
	_, err := s.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", "webhook")),
		httpclient.WithResponseErrorHandler(statusHandler("discord")),
	).
		SetBody(discordPayload{Embeds: []discordEmbed{{
			Title:       alert.Title,
			Description: alert.Body,
			Color:       discordRed,
		}}}).
		Post(ctx, s.webhookURL)
	if err != nil {
		return sendFailed("discord", err)
	}
	return nil
}
