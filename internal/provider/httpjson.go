package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/actuallystonmai/availability-service/internal/domain"
)

// Upstream bodies above this size are treated as malformed.
const maxBodyBytes = 4 << 20

// Error bodies are cut to this many bytes, on a rune boundary.
const maxSnippetBytes = 200

// HTTPClient is satisfied by *http.Client and by test doubles.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// GetJSON issues a GET and decodes a 2xx JSON body into out. Every failure is
// returned as *UnavailableError for source; a 404 can be detected with
// IsNotFound.
func GetJSON(ctx context.Context, client HTTPClient, source domain.Source, url string, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Unavailable(source, ReasonTransport, fmt.Errorf("build request: %w", err))
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Unavailable(source, ReasonTimeout, err)
		}
		return Unavailable(source, ReasonTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Unavailable(source, ReasonTransport, fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Unavailable(source, ReasonStatus, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       snippet(body),
		})
	}
	if len(body) > maxBodyBytes {
		return Unavailable(source, ReasonMalformed, errors.New("response body too large"))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Unavailable(source, ReasonMalformed, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= maxSnippetBytes {
		return s
	}
	n := maxSnippetBytes
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
