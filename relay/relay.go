// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/webtty/lib/clock"
	"github.com/bureau-foundation/webtty/lib/netutil"
	"github.com/bureau-foundation/webtty/signaling"
)

// DefaultBaseURL is the public store the original tool used.
const DefaultBaseURL = "https://up.10kb.site/"

// DefaultPollInterval is the delay between GETs while polling.
const DefaultPollInterval = 300 * time.Millisecond

// RelayError reports a failed upload or poll. StatusCode is zero when
// the request never produced a response.
type RelayError struct {
	Location   string
	StatusCode int
	Body       string
	Err        error
}

func (e *RelayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("relay %s: HTTP %d: %s", e.Location, e.StatusCode, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("relay %s: %v", e.Location, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

// Options configures a Client.
type Options struct {
	// BaseURL is joined with a location to form the token URL.
	// Default: DefaultBaseURL.
	BaseURL string

	// HTTPClient performs requests. Default: a client with a 30s timeout.
	HTTPClient *http.Client

	// Clock drives the poll interval. Default: clock.Real().
	Clock clock.Clock

	// PollInterval is the delay between GETs. Default: DefaultPollInterval.
	PollInterval time.Duration

	// Logger receives debug records for each poll attempt.
	Logger *slog.Logger
}

// Client uploads and polls tokens at a relay store.
type Client struct {
	base         *url.URL
	httpClient   *http.Client
	clock        clock.Clock
	pollInterval time.Duration
	logger       *slog.Logger
}

// New creates a Client. It fails only for an unparseable base URL.
func New(options Options) (*Client, error) {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing relay URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("relay URL %q: scheme must be http or https", baseURL)
	}

	client := &Client{
		base:         base,
		httpClient:   options.HTTPClient,
		clock:        options.Clock,
		pollInterval: options.PollInterval,
		logger:       options.Logger,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if client.clock == nil {
		client.clock = clock.Real()
	}
	if client.pollInterval <= 0 {
		client.pollInterval = DefaultPollInterval
	}
	if client.logger == nil {
		client.logger = slog.New(slog.DiscardHandler)
	}
	return client, nil
}

// URL returns the full URL for location.
func (c *Client) URL(location string) string {
	return c.base.JoinPath(location).String()
}

// Upload stores body at location with a single POST. 200 and 201 are
// success; any other outcome is a *RelayError.
func (c *Client) Upload(ctx context.Context, location, body string) error {
	if !signaling.ValidRelayLocation(location) {
		return &RelayError{Location: location, Err: signaling.ErrInvalidRelayLocation}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(location), strings.NewReader(body))
	if err != nil {
		return &RelayError{Location: location, Err: err}
	}
	request.Header.Set("Content-Type", "text/plain")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return &RelayError{Location: location, Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return &RelayError{
			Location:   location,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
			Err:        fmt.Errorf("unexpected status %s", response.Status),
		}
	}
	return nil
}

// Poll fetches location until it holds a token and returns the body.
// 404 means nothing has been stored yet and polling continues after
// the poll interval. Any other non-200 status, a transport failure, or
// ctx ending stops polling.
func (c *Client) Poll(ctx context.Context, location string) (string, error) {
	if !signaling.ValidRelayLocation(location) {
		return "", &RelayError{Location: location, Err: signaling.ErrInvalidRelayLocation}
	}

	for attempt := 1; ; attempt++ {
		body, found, err := c.fetch(ctx, location)
		if err != nil {
			return "", err
		}
		if found {
			c.logger.Debug("relay token received", "location", location, "attempts", attempt)
			return body, nil
		}

		select {
		case <-ctx.Done():
			return "", &RelayError{Location: location, Err: ctx.Err()}
		case <-c.clock.After(c.pollInterval):
		}
	}
}

// fetch performs one GET. found is false for 404.
func (c *Client) fetch(ctx context.Context, location string) (body string, found bool, err error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(location), nil)
	if err != nil {
		return "", false, &RelayError{Location: location, Err: err}
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", false, &RelayError{Location: location, Err: err}
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
		data, err := netutil.ReadBody(response.Body)
		if err != nil {
			return "", false, &RelayError{Location: location, StatusCode: response.StatusCode, Err: err}
		}
		return strings.TrimSpace(string(data)), true, nil
	case http.StatusNotFound:
		return "", false, nil
	default:
		return "", false, &RelayError{
			Location:   location,
			StatusCode: response.StatusCode,
			Body:       netutil.ErrorBody(response.Body),
			Err:        fmt.Errorf("unexpected status %s", response.Status),
		}
	}
}

// LocationLength is the length of locations produced by NewLocation.
const LocationLength = 32

const locationAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// NewLocation returns a random location of LocationLength characters
// from [0-9A-Za-z]. The location is the only secret guarding an
// unsealed answer, so it comes from crypto/rand.
func NewLocation() (string, error) {
	// 62 does not divide 256; reject bytes >= 248 to stay uniform.
	const limit = 256 - 256%len(locationAlphabet)
	location := make([]byte, 0, LocationLength)
	buffer := make([]byte, LocationLength*2)
	for len(location) < LocationLength {
		if _, err := rand.Read(buffer); err != nil {
			return "", fmt.Errorf("generating relay location: %w", err)
		}
		for _, b := range buffer {
			if int(b) >= limit {
				continue
			}
			location = append(location, locationAlphabet[int(b)%len(locationAlphabet)])
			if len(location) == LocationLength {
				break
			}
		}
	}
	return string(location), nil
}

// IsRelayError reports whether err carries a *RelayError.
func IsRelayError(err error) bool {
	var relayErr *RelayError
	return errors.As(err, &relayErr)
}
