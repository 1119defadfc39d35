// tgxp-bridge - A bridge between Telegram-style chat groups and XMPP-style
// federated rooms.
// Copyright (C) 2026 tgxp-bridge contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package telegram implements the TG side of the bridge: a thin Bot API
// client, the long-polling update loop, and the outbound ChatHandler.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog"
)

const apiBaseURL = "https://api.telegram.org/bot"

// APIError is a typed, inspectable error for a Bot API call that completed
// but reported ok=false.
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// maxCallAttempts bounds retries for transient network errors; exhaustion
// raises an APIError with code -1.
const maxCallAttempts = 5

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// Client is a thin wrapper over the Bot HTTP API: one call per method name,
// with retry and rate-limit handling. It plays the role the original
// dynamic-attribute-access client played, re-expressed as a single typed
// Call dispatch per the idiom Go favors over duck-typed method synthesis.
type Client struct {
	httpClient *http.Client
	token      string
	log        zerolog.Logger
}

// NewClient creates a Client for the given bot token.
func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 65 * time.Second},
		token:      token,
		log:        log.With().Str("component", "telegram_api").Logger(),
	}
}

// file is an optional multipart attachment for a Call.
type file struct {
	Field    string
	Filename string
	MIME     string
	Body     io.Reader
}

// Call issues one Bot API method with the given URL parameters and an
// optional file body. It makes at most maxCallAttempts attempts in all on
// network-level failures and honors 429 rate-limit responses indefinitely.
func (c *Client) Call(ctx context.Context, method string, params map[string]string, f *file) (json.RawMessage, error) {
	var result json.RawMessage

	// Only network-level failures count against the attempt cap; a 429
	// retry is free and can loop for as long as the server keeps asking.
	attempt := 0
	operation := func() error {
		res, retryAfter, err := c.do(ctx, method, params, f)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				// Protocol error - already permanent, not a network failure.
				return err
			}
			attempt++
			if attempt >= maxCallAttempts {
				return backoff.Permanent(&APIError{Code: -1, Description: "request attempts exhausted"})
			}
			c.log.Warn().Err(err).Str("method", method).Int("attempt", attempt).Msg("telegram api request failed, retrying")
			return err
		}
		if retryAfter > 0 {
			c.log.Warn().Str("method", method).Int("retry_after", retryAfter).Msg("rate limited by telegram api")
			select {
			case <-time.After(time.Duration(retryAfter) * time.Second):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
			return errors.New("rate limited, retrying")
		}
		result = res
		return nil
	}

	// No retry cap on the policy itself: rate-limit retries are unlimited,
	// and network failures stop via the attempt counter above turning
	// permanent.
	policy := backoff.WithContext(backoff.NewConstantBackOff(200*time.Millisecond), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, errors.Wrap(err, "telegram api call")
	}
	return result, nil
}

// do issues a single HTTP attempt. retryAfter is non-zero only on a 429
// response that should be retried without counting against the attempt cap.
func (c *Client) do(ctx context.Context, method string, params map[string]string, f *file) (json.RawMessage, int, error) {
	endpoint := apiBaseURL + c.token + "/" + method

	var req *http.Request
	var err error
	if f != nil {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		for k, v := range params {
			_ = writer.WriteField(k, v)
		}
		part, werr := writer.CreateFormFile(f.Field, f.Filename)
		if werr != nil {
			return nil, 0, errors.Wrap(werr, "create multipart file field")
		}
		if _, werr := io.Copy(part, f.Body); werr != nil {
			return nil, 0, errors.Wrap(werr, "copy attachment body")
		}
		if werr := writer.Close(); werr != nil {
			return nil, 0, errors.Wrap(werr, "close multipart writer")
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err == nil {
			req.Header.Set("Content-Type", writer.FormDataContentType())
		}
	} else {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errors.Wrap(err, "read response body")
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, 0, errors.Wrap(err, "decode response body")
	}

	if resp.StatusCode == http.StatusTooManyRequests && parsed.Parameters.RetryAfter > 0 {
		return nil, parsed.Parameters.RetryAfter, nil
	}

	if !parsed.OK {
		return nil, 0, backoff.Permanent(&APIError{Code: parsed.ErrorCode, Description: parsed.Description})
	}

	return parsed.Result, 0, nil
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	raw, err := c.Call(ctx, "getUpdates", map[string]string{
		"offset":          strconv.FormatInt(offset, 10),
		"timeout":         "50",
		"allowed_updates": `["message","edited_message","my_chat_member"]`,
	}, nil)
	if err != nil {
		return nil, err
	}
	var updates []Update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return nil, errors.Wrap(err, "decode updates")
	}
	return updates, nil
}
