package websocket

import (
	"net/url"
)

// OriginPatterns turns configured origins such as "https://chat.example:8443"
// into the host patterns the upgrader matches against. "*" passes through;
// entries that do not parse are used as given.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			patterns = append(patterns, o)
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
