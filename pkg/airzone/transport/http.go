package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/berfenger/airzone2mqtt/pkg/airzone/climate"
)

// HTTPError is returned for non-2xx answers. It unwraps to ErrTransport.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	return climate.ErrTransport
}

type Request struct {
	Name   string
	Method string
	URL    string
	Body   any
	// Decorate is called on the outgoing request, e.g. to attach credentials.
	Decorate func(*http.Request)
}

// JSONClient executes JSON requests and decodes JSON answers.
type JSONClient struct {
	HTTP        *http.Client
	Instruments []Instrument
}

func (c JSONClient) Do(ctx context.Context, r Request, out any) (err error) {
	defer RecordTimer(r.Name, c.Instruments)()
	defer func() { RecordError(r.Name, err, c.Instruments) }()

	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", r.Name, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return fmt.Errorf("%w: create %s request: %v", climate.ErrTransport, r.Name, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.Decorate != nil {
		r.Decorate(req)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", climate.ErrTransport, r.Name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read %s response: %v", climate.ErrTransport, r.Name, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			Method:     r.Method,
			URL:        r.URL,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return fmt.Errorf("%w: empty %s response", climate.ErrParse, r.Name)
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", climate.ErrParse, r.Name, err)
	}
	return nil
}

// StatusCode extracts the HTTP status of an error returned by Do, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode
	}
	return 0
}
