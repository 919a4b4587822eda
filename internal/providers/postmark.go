package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inkwire/dispatch/pkg/logger"
	"github.com/valyala/fasthttp"
)

// postmarkBatchLimit is the Postmark /email/batch cap per call.
const postmarkBatchLimit = 500

type PostmarkConfig struct {
	ServerToken string
	BaseURL     string
	Timeout     time.Duration
	MaxConns    int
}

// PostmarkAdapter sends through the Postmark batch API. Postmark reports
// per-message acceptance inline, so a single round trip yields both the
// accepted message ids and the hard rejections.
type PostmarkAdapter struct {
	config PostmarkConfig
	client *fasthttp.Client
}

func NewPostmarkAdapter(config PostmarkConfig) *PostmarkAdapter {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.postmarkapp.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxConns == 0 {
		config.MaxConns = 100
	}
	return &PostmarkAdapter{
		config: config,
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

func (a *PostmarkAdapter) Name() string             { return "postmark" }
func (a *PostmarkAdapter) SupportsScheduling() bool { return true }
func (a *PostmarkAdapter) BatchLimit() int          { return postmarkBatchLimit }

type postmarkMessage struct {
	From     string `json:"From"`
	To       string `json:"To"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
}

type postmarkResult struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
	To        string `json:"To"`
}

func (a *PostmarkAdapter) Send(ctx context.Context, in *SendInput) (*SendOutput, error) {
	batch := make([]postmarkMessage, 0, len(in.Recipients))
	for _, rcpt := range in.Recipients {
		batch = append(batch, postmarkMessage{
			From:     in.FromEmail,
			To:       rcpt.Email,
			ReplyTo:  in.ReplyTo,
			Subject:  in.Subject,
			HtmlBody: in.HTML,
		})
	}

	reqBody, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	respBody, err := a.doRequest(ctx, "POST", "/email/batch", reqBody)
	if err != nil {
		return nil, err
	}

	var results []postmarkResult
	if err := json.Unmarshal(respBody, &results); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(results) != len(in.Recipients) {
		return nil, fmt.Errorf("postmark returned %d results for %d messages", len(results), len(in.Recipients))
	}

	out := &SendOutput{}
	for i, res := range results {
		rcpt := in.Recipients[i]
		if res.ErrorCode != 0 {
			out.Rejected = append(out.Rejected, Rejection{
				DeliveryID: rcpt.DeliveryID,
				Email:      rcpt.Email,
				Reason:     fmt.Sprintf("postmark error %d: %s", res.ErrorCode, res.Message),
			})
			continue
		}
		out.Accepted = append(out.Accepted, Acceptance{
			DeliveryID:        rcpt.DeliveryID,
			Email:             rcpt.Email,
			ProviderMessageID: res.MessageID,
		})
	}

	logger.Info("postmark batch sent",
		"newsletter_id", in.NewsletterID,
		"accepted", len(out.Accepted),
		"rejected", len(out.Rejected))

	return out, nil
}

func (a *PostmarkAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(a.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", a.config.ServerToken)
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(a.config.Timeout)
	}

	if err := a.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}
