// Package featureflags evaluates rollout flags configured through FEATURE_FLAGS,
// a comma separated list such as "news_broadcast=on,markdown_cache=off,editor=25%".
package featureflags

import (
	"maps"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// NewsBroadcast pushes new root news posts to every connected client.
	NewsBroadcast = "news_broadcast"
	// MarkdownCache memoizes rendered Markdown in redis.
	MarkdownCache = "markdown_cache"
)

var builtin = map[string]bool{
	NewsBroadcast: true,
	MarkdownCache: true,
}

// rule is a parsed flag value. percent is -1 for plain on/off values.
type rule struct {
	source  string
	on      bool
	percent int
}

func parseRule(v string) rule {
	r := rule{source: v, percent: -1}
	switch v {
	case "on", "true", "1", "yes":
		r.on = true
		return r
	case "off", "false", "0", "no":
		return r
	}
	if digits, ok := strings.CutSuffix(v, "%"); ok {
		if pct, err := strconv.Atoi(digits); err == nil {
			r.percent = min(max(pct, 0), 100)
		} else {
			r.percent = 0
		}
	}
	return r
}

func (r rule) enabledFor(name string, userID uint) bool {
	switch {
	case r.percent < 0:
		return r.on
	case r.percent == 0:
		return false
	case r.percent == 100:
		return true
	case userID == 0:
		return false
	}
	h := xxhash.Sum64String(name + ":" + strconv.FormatUint(uint64(userID), 10))
	return int(h%100) < r.percent
}

// Manager holds the configured flags. A nil Manager answers with the built-in defaults.
type Manager struct {
	rules map[string]rule
}

func NewManager(raw string) *Manager {
	m := &Manager{rules: make(map[string]rule)}
	for _, item := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(item, "=")
		key, value = canonical(key), canonical(value)
		if !ok || key == "" || value == "" {
			continue
		}
		m.rules[key] = parseRule(value)
	}
	return m
}

// Enabled reports whether name is on for userID. Percentage rollouts hash
// the flag name with the user id so each user lands in a stable bucket.
func (m *Manager) Enabled(name string, userID uint) bool {
	key := canonical(name)
	if m != nil {
		if r, ok := m.rules[key]; ok {
			return r.enabledFor(key, userID)
		}
	}
	return builtin[key]
}

// Raw returns the configured values as written.
func (m *Manager) Raw() map[string]string {
	out := map[string]string{}
	if m == nil {
		return out
	}
	for k, r := range m.rules {
		out[k] = r.source
	}
	return out
}

// Snapshot evaluates every known flag for userID.
func (m *Manager) Snapshot(userID uint) map[string]bool {
	names := maps.Clone(builtin)
	if m != nil {
		for k := range m.rules {
			names[k] = true
		}
	}
	out := make(map[string]bool, len(names))
	for name := range names {
		out[name] = m.Enabled(name, userID)
	}
	return out
}

func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
