package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shriyavallabh/Jarvish-sub008/pkg/config"
)

// MessageStatus is the gateway's view of a sent message.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
	StatusUnknown   MessageStatus = "unknown"
)

// Gateway sends template messages. Errors must be *Error values so the
// queue can classify them.
type Gateway interface {
	SendTemplate(ctx context.Context, msg *Message) (string, error)
	ValidateRecipientFormat(recipient string) (string, error)
	GetMessageStatus(ctx context.Context, messageID string) (MessageStatus, error)
}

// Gateway error codes that mean the recipient can never be reached.
var invalidRecipientCodes = map[int]bool{
	131026: true, // message undeliverable
	131030: true, // recipient not on allowed list
	1013:    true, // user is not valid
}

// HTTPGateway talks to a WhatsApp Business style REST API.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	senderID   string
	httpClient *http.Client
	phones     *PhoneValidator
	logger     *slog.Logger
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway client. httpClient may be nil.
func NewHTTPGateway(cfg config.GatewayConfig, httpClient *http.Client, logger *slog.Logger) *HTTPGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = config.DefaultGatewayTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		senderID:   cfg.SenderID,
		httpClient: httpClient,
		phones:     NewPhoneValidator(cfg.DefaultRegion),
		logger:     logger.With("component", "delivery.gateway"),
	}
}

type sendRequest struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         templatePayload `json:"template"`
}

type templatePayload struct {
	Name       string      `json:"name"`
	Language   language    `json:"language"`
	Components []Component `json:"components,omitempty"`
}

type language struct {
	Code string `json:"code"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendTemplate posts a template message and returns the gateway message ID.
func (g *HTTPGateway) SendTemplate(ctx context.Context, msg *Message) (string, error) {
	to, err := g.ValidateRecipientFormat(msg.Recipient)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "template",
		Template: templatePayload{
			Name:       msg.Template.Name,
			Language:   language{Code: msg.Template.Language},
			Components: msg.Template.Components,
		},
	})
	if err != nil {
		return "", NewError(KindGatewayRejected, "failed to encode request", err)
	}

	endpoint := g.baseURL + "/" + url.PathEscape(g.senderID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", NewError(KindNetworkError, "failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", NewError(KindNetworkError, "gateway request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", NewError(KindNetworkError, "failed to read gateway response", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var parsed sendResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Messages) == 0 {
			return "", &Error{Kind: KindNetworkError, Message: "malformed gateway response", StatusCode: resp.StatusCode, Cause: err}
		}
		return parsed.Messages[0].ID, nil
	}

	return "", g.classify(ctx, resp, respBody)
}

// ValidateRecipientFormat normalizes a phone number to E.164.
func (g *HTTPGateway) ValidateRecipientFormat(recipient string) (string, error) {
	return g.phones.Normalize(recipient)
}

// GetMessageStatus fetches the delivery status of a sent message.
func (g *HTTPGateway) GetMessageStatus(ctx context.Context, messageID string) (MessageStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/"+url.PathEscape(messageID), nil)
	if err != nil {
		return StatusUnknown, NewError(KindNetworkError, "failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return StatusUnknown, NewError(KindNetworkError, "gateway request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return StatusUnknown, NewError(KindNetworkError, "failed to read gateway response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return StatusUnknown, g.classify(ctx, resp, body)
	}

	var parsed struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return StatusUnknown, NewError(KindNetworkError, "malformed status response", err)
	}

	switch s := MessageStatus(parsed.Status); s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed:
		return s, nil
	default:
		return StatusUnknown, nil
	}
}

// classify maps an error response to a delivery error kind.
func (g *HTTPGateway) classify(ctx context.Context, resp *http.Response, body []byte) error {
	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed)

	msg := parsed.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	de := &Error{Message: msg, StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		de.Kind = KindGatewayRateLimited
		de.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case invalidRecipientCodes[parsed.Error.Code]:
		de.Kind = KindInvalidRecipient
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		de.Kind = KindGatewayRejected
	default:
		de.Kind = KindNetworkError
	}
	if parsed.Error.Code != 0 {
		de.Cause = errors.New("gateway error code " + strconv.Itoa(parsed.Error.Code))
	}

	g.logger.WarnContext(ctx, "gateway request failed",
		"status_code", resp.StatusCode,
		"kind", de.Kind,
		"gateway_code", parsed.Error.Code,
		"message", msg,
	)
	return de
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// String helps logs.
func (s MessageStatus) String() string { return string(s) }

func (g *HTTPGateway) String() string {
	return fmt.Sprintf("HTTPGateway(%s)", g.baseURL)
}
