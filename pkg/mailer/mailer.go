package mailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/susplants/shop-backend/pkg/config"
	pkgerrors "github.com/susplants/shop-backend/pkg/errors"
)

const responseBodyReadLimit int64 = 4096

var (
	errDomainRequired = errors.New("mailgun domain is required")
	errAPIKeyRequired = errors.New("mailgun api key is required")
	errFromRequired   = errors.New("mailgun from address is required")
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender is the notification surface the services depend on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Client sends transactional email through the Mailgun messages API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	domain     string
	apiKey     string
	from       string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient builds the Mailgun client from configuration.
func NewClient(cfg config.MailgunConfig, opts ...Option) (*Client, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, errDomainRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errFromRequired
	}

	client := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		domain:     domain,
		apiKey:     apiKey,
		from:       from,
	}
	if client.baseURL == "" {
		client.baseURL = "https://api.mailgun.net/v3"
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Send posts the message to the Mailgun messages endpoint.
func (c *Client) Send(ctx context.Context, msg Message) error {
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address is required")
	}

	form := url.Values{}
	form.Set("from", c.from)
	form.Set("to", to)
	form.Set("subject", msg.Subject)
	form.Set("text", msg.Body)

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building mailgun request")
	}
	req.SetBasicAuth("api", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sending mailgun request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("mailgun responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return nil
}
