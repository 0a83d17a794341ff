package actor

import (
	"fmt"
	"net/url"
)

// socketURL rewrites the configured socket endpoint into the websocket
// dial URL for one role: ws(s) scheme plus the Engine.IO v4 handshake
// query parameters.
func socketURL(base, role string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid socket URL %q: %w", base, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid socket URL scheme %q", u.Scheme)
	}

	query := u.Query()
	query.Set("role", role)
	query.Set("EIO", "4")
	query.Set("transport", "websocket")
	u.RawQuery = query.Encode()

	return u.String(), nil
}
