// Package guard decides whether a sender may use the bot. Authorization
// runs before any backend call or storage mutation.
package guard

import (
	"strings"
)

type Config struct {
	// AllowedUsers holds sender patterns: "user:homeserver" for a single
	// account, "*:homeserver" for every account on a homeserver. An empty
	// list allows everyone.
	AllowedUsers []string
}

type Guard struct {
	cfg      Config
	patterns []pattern
}

type pattern struct {
	localpart  string // "*" matches any localpart
	homeserver string
}

func New(cfg Config) *Guard {
	g := &Guard{cfg: cfg}
	for _, raw := range cfg.AllowedUsers {
		p, ok := parsePattern(raw)
		if !ok {
			continue
		}
		g.patterns = append(g.patterns, p)
	}
	return g
}

// Open reports whether the guard allows everyone (no patterns configured).
func (g *Guard) Open() bool { return g == nil || len(g.patterns) == 0 }

// Allowed reports whether the Matrix user ID (e.g. "@alice:example.org")
// matches the allow-list.
func (g *Guard) Allowed(userID string) bool {
	if g.Open() {
		return true
	}
	localpart, homeserver, ok := splitUserID(userID)
	if !ok {
		return false
	}
	for _, p := range g.patterns {
		if !strings.EqualFold(p.homeserver, homeserver) {
			continue
		}
		if p.localpart == "*" || strings.EqualFold(p.localpart, localpart) {
			return true
		}
	}
	return false
}

func parsePattern(raw string) (pattern, bool) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "@"))
	localpart, homeserver, found := strings.Cut(raw, ":")
	if !found || localpart == "" || homeserver == "" {
		return pattern{}, false
	}
	return pattern{localpart: localpart, homeserver: homeserver}, true
}

func splitUserID(userID string) (localpart, homeserver string, ok bool) {
	userID = strings.TrimSpace(userID)
	if !strings.HasPrefix(userID, "@") {
		return "", "", false
	}
	localpart, homeserver, found := strings.Cut(userID[1:], ":")
	if !found || localpart == "" || homeserver == "" {
		return "", "", false
	}
	return localpart, homeserver, true
}
