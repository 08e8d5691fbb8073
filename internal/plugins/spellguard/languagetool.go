package spellguard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/imWorldy/StarfishPlugins/internal/dispatcher"
	"github.com/imWorldy/StarfishPlugins/internal/metrics"
	"github.com/valyala/fasthttp"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

const DefaultEndpoint = "https://api.languagetool.org/v2/check"

// The public LanguageTool service allows 20 requests per minute.
const (
	apiRequestEvery = 3 * time.Second
	apiBurst        = 5
)

var ErrAPIRateLimited = errors.New("LanguageTool request budget exhausted")

type CheckRequest struct {
	Endpoint string
	Text     string
	Language string
	Level    string
	APIKey   string
	Timeout  time.Duration
}

type Replacement struct {
	Value string `json:"value"`
}

// Match is one LanguageTool suggestion. Offset and Length count UTF-16 code units.
type Match struct {
	Offset       int           `json:"offset"`
	Length       int           `json:"length"`
	Replacements []Replacement `json:"replacements"`
}

type checkResponse struct {
	Matches []Match `json:"matches"`
}

// LanguageTool talks to a LanguageTool-compatible /v2/check endpoint.
type LanguageTool struct {
	doer    dispatcher.Doer
	limiter *rate.Limiter
	latency *metrics.LatencyHistogram
}

func NewLanguageTool(doer dispatcher.Doer) *LanguageTool {
	return &LanguageTool{
		doer:    doer,
		limiter: rate.NewLimiter(rate.Every(apiRequestEvery), apiBurst),
		latency: metrics.GetRegistry().Histogram("languagetool"),
	}
}

// Allow reserves one request from the budget at now.
func (lt *LanguageTool) Allow(now time.Time) bool {
	return lt.limiter.AllowN(now, 1)
}

// Check sends text for correction and returns it with every suggestion applied.
func (lt *LanguageTool) Check(req CheckRequest) (string, error) {
	endpoint := strings.TrimSpace(req.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	form := fasthttp.AcquireArgs()
	defer fasthttp.ReleaseArgs(form)
	form.Set("text", req.Text)
	form.Set("language", req.Language)
	if strings.EqualFold(req.Level, "picky") {
		form.Set("level", "picky")
	}

	headers := map[string]string{"Accept": "application/json"}
	if key := strings.TrimSpace(req.APIKey); key != "" {
		headers["Authorization"] = "Bearer " + key
	}

	start := time.Now()
	resp, err := dispatcher.Do(lt.doer, dispatcher.Request{
		Method:      fasthttp.MethodPost,
		URL:         endpoint,
		ContentType: "application/x-www-form-urlencoded",
		Headers:     headers,
		Body:        append([]byte(nil), form.QueryString()...),
	}, req.Timeout)
	if err != nil {
		if dispatcher.IsTimeout(err) {
			return "", fmt.Errorf("API timeout after %dms", req.Timeout.Milliseconds())
		}
		return "", err
	}
	lt.latency.Observe(time.Since(start))

	if !resp.OK() {
		body := strings.TrimSpace(string(resp.Body))
		if body == "" {
			body = fasthttp.StatusMessage(resp.StatusCode)
		}
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, body)
	}

	var payload checkResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}
	return applyMatches(req.Text, payload.Matches), nil
}

// applyMatches applies the first replacement of each match left to right,
// shifting later offsets by the length change of earlier ones.
func applyMatches(text string, matches []Match) string {
	applicable := make([]Match, 0, len(matches))
	for _, m := range matches {
		if len(m.Replacements) > 0 && m.Length >= 0 {
			applicable = append(applicable, m)
		}
	}
	if len(applicable) == 0 {
		return text
	}
	sort.SliceStable(applicable, func(i, j int) bool {
		return applicable[i].Offset < applicable[j].Offset
	})

	units := utf16.Encode([]rune(text))
	delta := 0
	for _, m := range applicable {
		value := m.Replacements[0].Value
		if value == "" {
			continue
		}
		start := m.Offset + delta
		if start < 0 || start > len(units) {
			continue
		}
		end := start + m.Length
		if end > len(units) {
			end = len(units)
		}

		repl := utf16.Encode([]rune(value))
		next := make([]uint16, 0, len(units)-(end-start)+len(repl))
		next = append(next, units[:start]...)
		next = append(next, repl...)
		next = append(next, units[end:]...)
		units = next
		delta += len(repl) - m.Length
	}
	return string(utf16.Decode(units))
}

// detectLanguage resolves the configured language. "auto" picks German when
// the text has umlauts or ß.
func detectLanguage(configured, text string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" || strings.EqualFold(configured, "auto") {
		if strings.ContainsAny(text, "äöüßÄÖÜẞ") {
			return "de-DE"
		}
		return "en-US"
	}
	tag, err := language.Parse(configured)
	if err != nil {
		return configured
	}
	return tag.String()
}
