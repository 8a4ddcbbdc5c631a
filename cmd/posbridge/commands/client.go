package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/thereceipt/pos-bridge/internal/channel"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// callResponse is the HTTP mirror's reply body
type callResponse struct {
	Result         any  `json:"result"`
	NotImplemented bool `json:"not_implemented"`
	Error          *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// callError is a reply carrying an error code
type callError struct {
	Code    string
	Message string
}

func (e *callError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// callMethod invokes method on the running daemon and returns its result
func callMethod(base, channelName, method string, args any) (any, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}

	endpoint := fmt.Sprintf("%s/call/%s?channel=%s",
		strings.TrimSuffix(base, "/"), url.PathEscape(method), url.QueryEscape(channelName))

	resp, err := httpClient.Post(endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var result callResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response (HTTP %d): %w", resp.StatusCode, err)
	}

	switch {
	case result.NotImplemented:
		return nil, fmt.Errorf("%s: %w", method, channel.ErrUnsupported)
	case result.Error != nil:
		return nil, &callError{Code: result.Error.Code, Message: result.Error.Message}
	}
	return result.Result, nil
}

// activate delivers uri to the running daemon and reports whether it was
// forwarded to a UI
func activate(base, uri string) (bool, error) {
	body, err := json.Marshal(map[string]string{"uri": uri})
	if err != nil {
		return false, err
	}

	resp, err := httpClient.Post(strings.TrimSuffix(base, "/")+"/activate", "application/json", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("activation rejected: HTTP %d", resp.StatusCode)
	}

	var result struct {
		Forwarded bool `json:"forwarded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Forwarded, nil
}
