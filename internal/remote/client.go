package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/zhouzirui/chatbox/internal/config"
	"github.com/zhouzirui/chatbox/internal/model/chat"
)

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// Client talks to the conversational service over its JSON endpoint.
type Client struct {
	httpClient *http.Client
	chatURL    string
	uploadURL  string
	sendChatID bool
	logger     zerolog.Logger
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithClientLogger sets the logger for request diagnostics.
func WithClientLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient builds a client for the endpoints described by cfg.
func NewClient(cfg config.RemoteConfig, opts ...ClientOption) (*Client, error) {
	chatURL, err := cfg.ChatURL()
	if err != nil {
		return nil, err
	}
	uploadURL, err := cfg.UploadURL()
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		chatURL:    chatURL,
		uploadURL:  uploadURL,
		sendChatID: cfg.SendChatID,
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Reply posts {"message": ...} to the chat endpoint and decodes the reply.
func (c *Client) Reply(ctx context.Context, req Request) (Reply, error) {
	payload := chatRequest{Message: req.Message}
	if c.sendChatID {
		payload.ChatID = req.ChatID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Reply{}, errors.Wrap(err, "encode chat request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
	if err != nil {
		return Reply{}, errors.Wrap(err, "build chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	c.logger.Debug().Str("url", c.chatURL).Int("bytes", len(body)).Msg("posting chat message")

	data, status, err := c.do(httpReq)
	if err != nil {
		return Reply{}, err
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(data, &decoded)

	if status < 200 || status > 299 {
		statusErr := &Error{Kind: chat.ErrorStatus, StatusCode: status}
		if decodeErr == nil {
			statusErr.Message = decoded.Error
		}
		return Reply{}, statusErr
	}
	if decodeErr != nil {
		return Reply{}, malformedError(errors.Wrap(decodeErr, "decode chat response"))
	}

	text := decoded.Reply
	if text == nil {
		text = decoded.Answer
	}
	if text == nil {
		return Reply{}, malformedError(ErrMissingReply)
	}

	return Reply{Text: *text, Sources: convertSources(decoded.Sources)}, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, transportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, transportError(errors.Wrap(err, "read response body"))
	}
	return data, resp.StatusCode, nil
}

func convertSources(sources []chatSource) []chat.Source {
	if len(sources) == 0 {
		return nil
	}
	return lo.Map(sources, func(src chatSource, _ int) chat.Source {
		return chat.Source{Content: src.PageContent, Metadata: src.Metadata}
	})
}
