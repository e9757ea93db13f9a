package transport

import (
	"fmt"
	"net/url"
)

// EndpointURL builds the chat endpoint for a user: <base>?id=<userID>.
// http and https bases are rewritten to ws and wss.
func EndpointURL(base, userID string) (string, error) {
	address, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint URL: %w", err)
	}

	switch address.Scheme {
	case "http":
		address.Scheme = "ws"
	case "https":
		address.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme: %q", address.Scheme)
	}

	if address.Host == "" {
		return "", fmt.Errorf("endpoint URL %q has no host", base)
	}

	if userID != "" {
		q := address.Query()
		q.Set("id", userID)
		address.RawQuery = q.Encode()
	}

	return address.String(), nil
}
