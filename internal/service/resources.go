package service

import "strings"

// ParseResourceList turns the raw comma-delimited resource field into
// resource document names: each token is trimmed and inner spaces become
// underscores. Blank tokens are dropped. Duplicates are kept; each one
// reserves a seat of its own.
func ParseResourceList(raw string) []string {
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		names = append(names, strings.ReplaceAll(p, " ", "_"))
	}
	return names
}
