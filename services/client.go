package services

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
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/magland/hchat/crypto"
	"github.com/magland/hchat/hub"
	"github.com/magland/hchat/protocol"
)

// APIError is a non-200 answer from the gateway.
type APIError struct {
	StatusCode int
	Message    string
	Reason     protocol.ReasonCode
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gateway returned %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// Client runs the publish and subscribe handshakes against a gateway.
type Client struct {
	baseURL    string
	key        crypto.PrivateKey
	publicKey  crypto.PublicKey
	httpClient *http.Client
	clock      clock.Clock
	log        *slog.Logger

	// trusted pins the gateway's system key for VerifyMessage.
	trusted crypto.PublicKey
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithClientClock(clk clock.Clock) ClientOption {
	return func(c *Client) { c.clock = clk }
}

func WithClientLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithTrustedSystemKey makes VerifyMessage reject messages attested by any
// other key.
func WithTrustedSystemKey(pk crypto.PublicKey) ClientOption {
	return func(c *Client) { c.trusted = pk }
}

// NewClient creates a client for the gateway at baseURL that signs with key.
func NewClient(baseURL string, key crypto.PrivateKey, opts ...ClientOption) (*Client, error) {
	pub, err := key.PublicKey()
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		key:        key,
		publicKey:  pub,
		httpClient: http.DefaultClient,
		clock:      clock.New(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PublicKey returns the key messages are signed with.
func (c *Client) PublicKey() crypto.PublicKey {
	return c.publicKey
}

// Publish JSON-encodes message and publishes it to channel.
func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return c.PublishJSON(ctx, channel, string(data))
}

// PublishJSON signs messageJSON, obtains a publish token, waits out the
// delay while solving the challenge, and redeems the token.
func (c *Client) PublishJSON(ctx context.Context, channel, messageJSON string) error {
	sig, err := crypto.Sign(c.key, []byte(messageJSON))
	if err != nil {
		return err
	}

	var issued protocol.InitiatePublishResponse
	err = c.post(ctx, "/api/initiatePublish", &protocol.InitiatePublishRequest{
		Type:             protocol.TypeInitiatePublishRequest,
		SenderPublicKey:  c.publicKey.String(),
		Channel:          channel,
		MessageSize:      protocol.MessageLength(messageJSON),
		MessageSignature: sig.String(),
	}, &issued)
	if err != nil {
		return err
	}
	received := c.clock.Now()

	token, err := protocol.DecodePublishToken(issued.PublishToken)
	if err != nil {
		return err
	}
	response, err := crypto.SolveProofOfWork(ctx, issued.PublishToken, token.Difficulty)
	if err != nil {
		return err
	}
	if err := c.waitUntil(ctx, received.Add(time.Duration(token.Delay)*time.Millisecond)); err != nil {
		return err
	}

	var published protocol.PublishResponse
	err = c.post(ctx, "/api/publish", &protocol.PublishRequest{
		Type:              protocol.TypePublishRequest,
		PublishToken:      issued.PublishToken,
		TokenSignature:    issued.TokenSignature,
		MessageJSON:       messageJSON,
		ChallengeResponse: response,
	}, &published)
	if err != nil {
		return err
	}
	if !published.Success {
		return errors.New("gateway did not confirm the publish")
	}
	c.log.Debug("published", "channel", channel, "size", protocol.MessageLength(messageJSON))
	return nil
}

// Subscribe runs the subscribe handshake and returns the read credential
// for channels.
func (c *Client) Subscribe(ctx context.Context, channels []string) (*protocol.SubscribeResponse, error) {
	var issued protocol.InitiateSubscribeResponse
	err := c.post(ctx, "/api/initiateSubscribe", &protocol.InitiateSubscribeRequest{
		Type:     protocol.TypeInitiateSubscribeRequest,
		Channels: channels,
	}, &issued)
	if err != nil {
		return nil, err
	}
	received := c.clock.Now()

	token, err := protocol.DecodeSubscribeToken(issued.SubscribeToken)
	if err != nil {
		return nil, err
	}
	response, err := crypto.SolveProofOfWork(ctx, issued.SubscribeToken, token.Difficulty)
	if err != nil {
		return nil, err
	}
	if err := c.waitUntil(ctx, received.Add(time.Duration(token.Delay)*time.Millisecond)); err != nil {
		return nil, err
	}

	var granted protocol.SubscribeResponse
	err = c.post(ctx, "/api/subscribe", &protocol.SubscribeRequest{
		Type:              protocol.TypeSubscribeRequest,
		SubscribeToken:    issued.SubscribeToken,
		TokenSignature:    issued.TokenSignature,
		ChallengeResponse: response,
		Channels:          channels,
	}, &granted)
	if err != nil {
		return nil, err
	}
	return &granted, nil
}

// Stream attaches to the gateway's hub over a websocket using a credential
// from Subscribe. The returned channel closes when ctx ends, the credential
// expires, or the connection fails.
func (c *Client) Stream(ctx context.Context, grant *protocol.SubscribeResponse, channels []string) (<-chan hub.Event, error) {
	u, err := url.Parse(c.baseURL + "/hub/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("subscribeKey", grant.PubnubSubscribeKey)
	q.Set("channels", strings.Join(channels, ","))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+grant.PubnubToken)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return nil, err
	}

	events := make(chan hub.Event)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()
	go func() {
		defer close(events)
		defer close(stop)
		for {
			var ev hub.Event
			if err := conn.ReadJSON(&ev); err != nil {
				if ctx.Err() == nil {
					c.log.Debug("stream ended", "err", err)
				}
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}

// VerifyMessage checks a message delivered on channel against its sender and
// system signatures, and against the pinned system key if one is configured.
func (c *Client) VerifyMessage(channel string, msg *protocol.PubsubMessage) (*protocol.SystemSignaturePayload, error) {
	return protocol.VerifyMessage(msg, channel, c.trusted)
}

// VerifyEvent verifies an event read from Stream.
func (c *Client) VerifyEvent(ev hub.Event) (*protocol.SystemSignaturePayload, error) {
	if ev.Message == nil {
		return nil, protocol.ErrInvalidRequestShape
	}
	return c.VerifyMessage(ev.Channel, ev.Message)
}

func (c *Client) waitUntil(ctx context.Context, at time.Time) error {
	wait := at.Sub(c.clock.Now())
	if wait <= 0 {
		return nil
	}
	timer := c.clock.Timer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if e, err := protocol.DecodeMessage[protocol.ErrorResponse](bytes.NewReader(raw)); err == nil && e.Error != "" {
			apiErr.Message, apiErr.Reason = e.Error, e.Reason
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
