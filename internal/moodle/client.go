package moodle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client drives Moodle's legacy REST web service: a single endpoint, the
// function name and token in the query string, parameters form-encoded in the
// body. No retries and no backoff live here; the one compatibility retry with
// an alternate encoding belongs to the operations layer.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// RemoteError is any failure reported by (or while reaching) the Moodle web
// service.
type RemoteError struct {
	Function string
	Code     string
	Message  string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("moodle %s: %s", e.Function, e.Message)
}

// Call posts params using the structured encoding.
func (c *Client) Call(ctx context.Context, function string, params Params) (json.RawMessage, error) {
	return c.CallEncoded(ctx, function, params, EncodeStructured)
}

// CallEncoded posts params with an explicit encoder and normalizes the
// response envelope into data-or-error.
func (c *Client) CallEncoded(ctx context.Context, function string, params Params, encode ParamEncoder) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/webservice/rest/server.php?wstoken=%s&wsfunction=%s&moodlewsrestformat=json",
		c.baseURL, url.QueryEscape(c.token), url.QueryEscape(function))

	body := encode(params).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &RemoteError{Function: function, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RemoteError{Function: function, Message: err.Error()}
	}

	return normalizeResponse(function, raw)
}

// nullSuccess lists the mutating functions for which this Moodle version
// returns no body on success. For every other function an empty or null body
// is an error. Hard-coded per function name on purpose: this papers over the
// behavior of one specific server version and should not be generalized.
var nullSuccess = map[string]bool{
	FnEnrolUsers:   true,
	FnUnenrolUsers: true,
}

// emptyObjectSuccess: a bare "{}" counts as success only for the enrol call.
var emptyObjectSuccess = map[string]bool{
	FnEnrolUsers: true,
}

func normalizeResponse(function string, raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if nullSuccess[function] {
			return nil, nil
		}
		return nil, &RemoteError{Function: function, Message: "empty response from Moodle"}
	}

	if bytes.Equal(trimmed, []byte("{}")) {
		if emptyObjectSuccess[function] {
			return nil, nil
		}
		return nil, &RemoteError{Function: function, Message: "empty response from Moodle"}
	}

	var env struct {
		Exception string `json:"exception"`
		ErrorCode string `json:"errorcode"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &env); err == nil && env.Exception != "" {
		msg := env.Message
		if msg == "" {
			msg = "Moodle returned an exception"
		}
		return nil, &RemoteError{Function: function, Code: env.ErrorCode, Message: msg}
	}

	return json.RawMessage(trimmed), nil
}
