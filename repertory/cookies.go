package repertory

import (
	"strings"
)

// cookieJar is an insertion-ordered name→value map. Setting an existing
// name replaces its value and keeps its position.
type cookieJar struct {
	names  []string
	values map[string]string
}

func newCookieJar() *cookieJar {
	return &cookieJar{values: make(map[string]string)}
}

func (j *cookieJar) set(name, value string) {
	if _, ok := j.values[name]; !ok {
		j.names = append(j.names, name)
	}
	j.values[name] = value
}

func (j *cookieJar) get(name string) (string, bool) {
	v, ok := j.values[name]
	return v, ok
}

// merge copies every cookie from other; other's values win
func (j *cookieJar) merge(other *cookieJar) {
	for _, name := range other.names {
		j.set(name, other.values[name])
	}
}

// hasCSRF reports whether any cookie name belongs to the csrf family
func (j *cookieJar) hasCSRF() bool {
	for _, name := range j.names {
		if strings.Contains(strings.ToLower(name), "csrf") {
			return true
		}
	}
	return false
}

// header renders the jar as a Cookie request header value
func (j *cookieJar) header() string {
	parts := make([]string, 0, len(j.names))
	for _, name := range j.names {
		parts = append(parts, name+"="+j.values[name])
	}
	return strings.Join(parts, "; ")
}

// parseSetCookie builds a jar from the Set-Cookie values of one response.
// Several values are taken as one cookie each. A single value may be a
// comma-joined list and is split with splitJoinedCookies.
func parseSetCookie(values []string) *cookieJar {
	jar := newCookieJar()

	var raw []string
	switch len(values) {
	case 0:
		return jar
	case 1:
		raw = splitJoinedCookies(values[0])
	default:
		raw = values
	}

	for _, c := range raw {
		if name, value, ok := cookieNameValue(c); ok {
			jar.set(name, value)
		}
	}
	return jar
}

// splitJoinedCookies splits at commas followed by optional spaces and a
// "token=" so that "Expires=Wed, 01-Jan-2030 ..." stays intact. A cookie value
// containing ", x=" is mis-split; upstream does not send such values.
func splitJoinedCookies(header string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(header); i++ {
		if header[i] != ',' || !startsWithCookiePair(header[i+1:]) {
			continue
		}
		parts = append(parts, header[start:i])
		start = i + 1
	}
	parts = append(parts, header[start:])

	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// startsWithCookiePair reports whether s (after leading spaces) starts with a
// non-empty token immediately followed by '='.
func startsWithCookiePair(s string) bool {
	s = strings.TrimLeft(s, " \t")
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '=':
			return i > 0
		case ';', ',', ' ', '\t':
			return false
		}
	}
	return false
}

// cookieNameValue reduces "name=value; Path=/; HttpOnly" to name and value
func cookieNameValue(cookie string) (string, string, bool) {
	if i := strings.IndexByte(cookie, ';'); i >= 0 {
		cookie = cookie[:i]
	}

	name, value, found := strings.Cut(cookie, "=")
	if !found {
		return "", "", false
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}
