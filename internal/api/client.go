// Package api is the typed REST gateway to the chat backend.
//
// Every authenticated request reads the credential from the session
// store at call time and attaches it as a bearer header. A 401 from any
// authenticated call clears the session before the error is returned.
// The gateway never retries; retry policy belongs to callers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"chatterm/internal/session"
	"chatterm/pkg/chat"
)

const (
	basePath       = "/api/v1"
	requestTimeout = 10 * time.Second

	// maxResponseSize bounds how much of a response body is read.
	maxResponseSize = 4 << 20
)

// Client is the REST gateway. Construct with New; the zero value is not
// usable.
type Client struct {
	base     string
	http     *http.Client
	sessions *session.Store
}

// InitialState is the combined result of the two initial-load fetches.
type InitialState struct {
	Channels []chat.Channel
	Messages []chat.Message
}

// New builds a gateway for the given base URL ("http://host[:port]").
func New(baseURL string, sessions *session.Store) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/") + basePath,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: requestTimeout,
		},
		sessions: sessions,
	}
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenBody struct {
	Token string `json:"token"`
}

// Login authenticates and persists the resulting session. A 401 here
// means bad credentials, not a stale session, so it surfaces as a
// RequestError and does not touch any stored session.
func (c *Client) Login(ctx context.Context, username, password string) (chat.Session, error) {
	var resp tokenBody
	err := c.do(ctx, http.MethodPost, "/login", credentialsBody{username, password}, &resp, false)
	if err != nil {
		return chat.Session{}, err
	}
	if err := c.sessions.Set(resp.Token, username); err != nil {
		return chat.Session{}, err
	}
	return chat.Session{Token: resp.Token, Username: username}, nil
}

// Signup registers a new account and persists the resulting session.
// A 409 means the username is taken; check with IsStatus.
func (c *Client) Signup(ctx context.Context, username, password string) (chat.Session, error) {
	var resp tokenBody
	err := c.do(ctx, http.MethodPost, "/signup", credentialsBody{username, password}, &resp, false)
	if err != nil {
		return chat.Session{}, err
	}
	if err := c.sessions.Set(resp.Token, username); err != nil {
		return chat.Session{}, err
	}
	return chat.Session{Token: resp.Token, Username: username}, nil
}

// FetchInitialState loads the full channel list and message history.
func (c *Client) FetchInitialState(ctx context.Context) (InitialState, error) {
	var st InitialState
	if err := c.do(ctx, http.MethodGet, "/channels", nil, &st.Channels, true); err != nil {
		return InitialState{}, err
	}
	if err := c.do(ctx, http.MethodGet, "/messages", nil, &st.Messages, true); err != nil {
		return InitialState{}, err
	}
	return st, nil
}

type channelNameBody struct {
	Name string `json:"name"`
}

// CreateChannel creates a channel and returns the server's version of it,
// id included.
func (c *Client) CreateChannel(ctx context.Context, name string) (chat.Channel, error) {
	var ch chat.Channel
	err := c.do(ctx, http.MethodPost, "/channels", channelNameBody{name}, &ch, true)
	return ch, err
}

// RenameChannel renames the channel with the given id.
func (c *Client) RenameChannel(ctx context.Context, id, name string) (chat.Channel, error) {
	var ch chat.Channel
	err := c.do(ctx, http.MethodPatch, "/channels/"+id, channelNameBody{name}, &ch, true)
	return ch, err
}

// DeleteChannel removes the channel with the given id.
func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/channels/"+id, nil, nil, true)
}

type sendMessageBody struct {
	ChannelID string `json:"channelId"`
	Body      string `json:"body"`
	Username  string `json:"username"`
}

// SendMessage posts a message and returns the stored message with its
// server-assigned id and timestamp. State is updated only from this
// confirmation (or the push echo), never optimistically before sending.
func (c *Client) SendMessage(ctx context.Context, channelID, body, username string) (chat.Message, error) {
	var msg chat.Message
	err := c.do(ctx, http.MethodPost, "/messages", sendMessageBody{channelID, body, username}, &msg, true)
	return msg, err
}

type errorBody struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if sess, ok := c.sessions.Get(); ok {
			req.Header.Set("Authorization", "Bearer "+sess.Token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.classify(resp.StatusCode, raw, authed)
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// classify maps a failed response to the error taxonomy. 401 on an
// authenticated call is the one failure with a mandated side effect:
// the stale session is cleared before the caller sees the error.
func (c *Client) classify(status int, raw []byte, authed bool) error {
	if status == http.StatusUnauthorized && authed {
		_ = c.sessions.Clear()
		return ErrUnauthorized
	}

	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	return &RequestError{Status: status, Message: eb.Message}
}
