package relay

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/imWorldy/StarfishPlugins/internal/host"
)

const maxContentLength = 1900

var colorCodes = regexp.MustCompile(`(?i)§[0-9a-fklmnor]`)

// shouldForward applies the position filters. Unknown positions are treated
// like system messages.
func shouldForward(position int, forwardSystem, forwardActionBar bool) bool {
	switch position {
	case 0:
		return true
	case 2:
		return forwardActionBar
	default:
		return forwardSystem
	}
}

type formatOptions struct {
	stripColors       bool
	includeTimestamps bool
}

// formatMessage turns a chat event into webhook content, or "" when there
// is nothing worth sending.
func formatMessage(ev host.ChatEvent, opts formatOptions, now time.Time) string {
	out := ev.Message
	if out == "" && ev.JSON != nil {
		out = extractComponent(ev.JSON)
	}
	if out == "" {
		return ""
	}

	if opts.stripColors {
		out = colorCodes.ReplaceAllString(out, "")
	}
	out = strings.TrimRightFunc(strings.ReplaceAll(out, "§", ""), unicode.IsSpace)
	if strings.TrimSpace(out) == "" {
		return ""
	}

	if opts.includeTimestamps {
		out = "[" + now.Format("15:04:05") + "] " + out
	}

	if r := []rune(out); len(r) > maxContentLength {
		out = string(r[:maxContentLength]) + "…"
	}
	return out
}

// extractComponent flattens a decoded chat component: text, then extra
// children, then translate arguments joined by spaces.
func extractComponent(component any) string {
	switch c := component.(type) {
	case nil:
		return ""
	case string:
		return c
	case []any:
		var b strings.Builder
		for _, child := range c {
			b.WriteString(extractComponent(child))
		}
		return b.String()
	case map[string]any:
		var b strings.Builder
		if text, ok := c["text"].(string); ok {
			b.WriteString(text)
		}
		if extra, ok := c["extra"].([]any); ok {
			for _, child := range extra {
				b.WriteString(extractComponent(child))
			}
		}
		if translate, ok := c["translate"].(string); ok && translate != "" {
			if with, ok := c["with"].([]any); ok {
				parts := make([]string, 0, len(with))
				for _, part := range with {
					parts = append(parts, extractComponent(part))
				}
				b.WriteString(strings.Join(parts, " "))
			}
		}
		return b.String()
	}
	return ""
}
