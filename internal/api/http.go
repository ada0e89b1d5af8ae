package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// doJSON executes an HTTP request, marshalling body as JSON and unmarshalling
// the response into out. Pass nil body for GET requests. Pass nil out to discard
// the response body. Every failure is returned as an *Error tagged with op.
func doJSON(ctx context.Context, client *http.Client, op, method, url string, headers map[string]string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindDecode, Err: fmt.Errorf("doJSON marshal: %w", err)}
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("doJSON new request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req) // #nosec G704 -- SSRF risk accepted; URL is the user-configured commerce API
	if err != nil {
		return &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("doJSON request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return &Error{
			Op:      op,
			Kind:    kindForStatus(resp.StatusCode),
			Status:  resp.StatusCode,
			Message: string(bytes.TrimSpace(snippet)),
		}
	}

	if out != nil {
		// Acks for mutations may come back empty (204 or a bare 200).
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return &Error{Op: op, Kind: KindDecode, Status: resp.StatusCode, Err: fmt.Errorf("doJSON decode: %w", err)}
		}
	}
	return nil
}
