package channel

import (
	"fmt"
	"net/url"
	"strings"
)

// PathPrefix is the realtime path every live-class channel lives under.
const PathPrefix = "ws/live-class/"

// Endpoint derives the realtime URL for sessionID from an HTTP(S) or WS(S)
// base address. The scheme is upgraded to its realtime variant (http to ws,
// https to wss) and any base path is kept.
func Endpoint(base string, sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("channel: empty session id")
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("channel: invalid base address %q: %w", base, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("channel: unsupported base scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("channel: base address %q has no host", base)
	}

	path := u.Path
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	u.Path = path + PathPrefix + sessionID + "/"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
