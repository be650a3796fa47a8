// Package generate talks to the hosted text-generation backend. One user
// turn in, one assistant reply out; the client keeps no state between calls.
package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"synbot/internal/config"
)

// Prompt prefix applied to plain-text turns.
const explanationPrefix = "Provide a detailed explanation: "

// Fixed generation parameters for every request.
const (
	maxLength   = 500
	temperature = 0.7
	topP        = 0.9
)

// APIError reports a non-200 response. A transport or timeout failure
// carries status code 0 since no response ever arrived.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API Error: %d", e.StatusCode)
}

// ParseError reports a response body that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return "Parsing error: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrUnexpectedFormat reports a decodable response of the wrong shape.
// Its message doubles as the user-visible diagnostic.
var ErrUnexpectedFormat = errors.New("Unexpected response format.")

// Client issues generation requests to one hosted model.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

// NewClient builds a client from the backend config, applying the bounded
// request timeout.
func NewClient(cfg config.BackendConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
	}
}

type generationParameters struct {
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
}

type generationOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type structuredInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

type generationRequest struct {
	Inputs     any                  `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
	Options    generationOptions    `json:"options"`
}

// Generate produces the assistant reply for one turn. It never fails from
// the caller's point of view: every error mode degrades to a diagnostic
// string delivered as if it were the reply. Callers that need to branch on
// failure use Do instead.
func (c *Client) Generate(ctx context.Context, userText string, attachment []byte) string {
	reply, err := c.Do(ctx, userText, attachment)
	if err != nil {
		return err.Error()
	}
	return reply
}

// Do is the strict variant of Generate: the reply on success, or an
// *APIError, *ParseError, or ErrUnexpectedFormat whose message is the
// diagnostic string Generate would have returned.
func (c *Client) Do(ctx context.Context, userText string, attachment []byte) (string, error) {
	req := generationRequest{
		Parameters: generationParameters{
			MaxLength:   maxLength,
			Temperature: temperature,
			TopP:        topP,
		},
		Options: generationOptions{WaitForModel: true},
	}
	if len(attachment) > 0 {
		req.Inputs = structuredInput{
			Text:  userText,
			Image: base64.StdEncoding.EncodeToString(attachment),
		}
	} else {
		req.Inputs = explanationPrefix + userText
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", &ParseError{Err: err}
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &APIError{}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &APIError{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode}
	}
	return parseReply(resp.Body, userText)
}

// parseReply extracts the first candidate's generated text. The backend
// echoes the prompt back at the head of the output, so a leading copy of
// the user text is stripped before trimming.
func parseReply(r io.Reader, userText string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ParseError{Err: err}
	}
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", &ParseError{Err: err}
	}
	candidates, ok := payload.([]any)
	if !ok || len(candidates) == 0 {
		return "", ErrUnexpectedFormat
	}
	first, ok := candidates[0].(map[string]any)
	if !ok {
		return "", &ParseError{Err: fmt.Errorf("candidate is %T, not an object", candidates[0])}
	}
	text, _ := first["generated_text"].(string)
	text = strings.TrimPrefix(text, userText)
	return strings.TrimSpace(text), nil
}
