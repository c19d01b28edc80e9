// Package sanitize strips personal data from raw client signals before they
// leave the process. Every event payload passes through Payload; none of the
// functions here return errors; on bad input they degrade to a coarser value.
package sanitize

import (
	"encoding/hex"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/blake2b"
)

// MaxTextLength is the longest free-text prefix kept from messages, stacks and user agents.
const MaxTextLength = 50

// droppedKeys never leave the process, whatever their value.
var droppedKeys = map[string]struct{}{
	"cookie":        {},
	"cookies":       {},
	"authorization": {},
	"token":         {},
	"password":      {},
	"query":         {},
}

var uriKeys = map[string]struct{}{
	"url":          {},
	"uri":          {},
	"path":         {},
	"document_uri": {},
	"blocked_uri":  {},
	"referrer":     {},
	"source_file":  {},
	"filename":     {},
	"document-uri": {},
	"blocked-uri":  {},
	"source-file":  {},
}

// URI removes the query string, fragment and user info from raw.
// When raw does not parse, everything from the first '?' or '#' is cut instead.
// A URI carrying none of the three is returned as given, without re-encoding.
func URI(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return splitURI(raw)
	}

	// data: and blob: carry content in the opaque part
	if u.Scheme == "data" || u.Scheme == "blob" {
		return u.Scheme
	}

	if u.User == nil && !strings.ContainsAny(raw, "?#") {
		return raw
	}

	u.User = nil
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

func splitURI(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// isAbsoluteURL reports whether s parses with both a scheme and a host.
func isAbsoluteURL(s string) bool {
	u, err := url.Parse(strings.TrimSpace(s))
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Text keeps at most MaxTextLength runes of s.
func Text(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxTextLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxTextLength])
}

// UserAgent keeps the leading MaxTextLength characters of a user-agent string.
func UserAgent(ua string) string {
	return Text(ua)
}

// StackTrace keeps the leading MaxTextLength characters of a stack trace.
func StackTrace(stack string) string {
	return Text(stack)
}

// Payload returns a sanitized copy of p. URI-like keys go through URI and
// credential-like keys are dropped. Other strings are truncated by Text, after
// URI when they hold an absolute URL. Nested maps and slices are sanitized
// recursively.
func Payload(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}

	out := make(map[string]any, len(p))
	for k, v := range p {
		key := strings.ToLower(k)
		if _, drop := droppedKeys[key]; drop {
			continue
		}

		switch val := v.(type) {
		case string:
			if _, isURI := uriKeys[key]; isURI {
				out[k] = URI(val)
			} else {
				out[k] = sanitizeString(val)
			}
		case map[string]any:
			out[k] = Payload(val)
		case []any:
			out[k] = sanitizeSlice(val)
		default:
			out[k] = val
		}
	}
	return out
}

func sanitizeSlice(in []any) []any {
	out := make([]any, 0, len(in))
	for _, v := range in {
		switch val := v.(type) {
		case string:
			out = append(out, sanitizeString(val))
		case map[string]any:
			out = append(out, Payload(val))
		default:
			out = append(out, val)
		}
	}
	return out
}

func sanitizeString(s string) string {
	if isAbsoluteURL(s) {
		return Text(URI(s))
	}
	return Text(s)
}

// HashIP returns a salted BLAKE2b digest of ip, hex encoded and truncated to
// 32 characters. Empty input yields an empty string.
func HashIP(ip, salt string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}

	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}

	h, err := blake2b.New256(key)
	if err != nil {
		// unreachable: key length is bounded above
		sum := blake2b.Sum256([]byte(salt + ip))
		return hex.EncodeToString(sum[:16])
	}
	h.Write([]byte(ip))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
