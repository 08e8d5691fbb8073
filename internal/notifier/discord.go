package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/imWorldy/StarfishPlugins/internal/dispatcher"
	"github.com/imWorldy/StarfishPlugins/internal/metrics"
	"github.com/valyala/fasthttp"
)

const (
	WebhookUserAgent = "Starfish-Proxy-Discord-Relay/1.0.0"
	WebhookTimeout   = 10 * time.Second

	maxUsernameLength = 32
	maxErrorSummary   = 400
)

// Error texts are shown to the player as-is.
var (
	ErrInvalidWebhookURL = errors.New("Invalid webhook URL")
	ErrInsecureWebhook   = errors.New("Webhook URL must use HTTPS")
	ErrWebhookTimeout    = errors.New("Discord webhook request timed out")
)

// Webhook is a validated Discord webhook target.
type Webhook struct {
	URL   string
	ID    string
	Token string
}

// Route is the key used for rate-limit tracking.
func (w *Webhook) Route() string {
	if w.ID != "" {
		return "webhook:" + w.ID
	}
	return "webhook:" + w.URL
}

// ParseWebhookURL checks that raw is an absolute https URL and pulls the
// webhook id and token out of /api/[v*/]webhooks/{id}/{token} when present.
func ParseWebhookURL(raw string) (*Webhook, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidWebhookURL
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return nil, ErrInsecureWebhook
	}

	w := &Webhook{URL: raw}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "webhooks" && i+1 < len(parts) {
			w.ID = parts[i+1]
			if i+2 < len(parts) {
				w.Token = parts[i+2]
			}
			break
		}
	}
	return w, nil
}

// BuildParams assembles the webhook body. Mentions are suppressed unless
// allowMentions is set.
func BuildParams(content, username string, allowMentions bool) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{Content: content}

	if name := strings.TrimSpace(username); name != "" {
		if r := []rune(name); len(r) > maxUsernameLength {
			name = string(r[:maxUsernameLength])
		}
		params.Username = name
	}

	if !allowMentions {
		params.AllowedMentions = &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		}
	}
	return params
}

// WebhookClient posts webhook bodies through a dispatcher.Doer. Send is safe
// to call from worker goroutines.
type WebhookClient struct {
	doer    dispatcher.Doer
	limits  *dispatcher.RateLimitMonitor
	latency *metrics.LatencyHistogram
	now     func() time.Time
}

func NewWebhookClient(doer dispatcher.Doer) *WebhookClient {
	return &WebhookClient{
		doer:    doer,
		limits:  dispatcher.NewRateLimitMonitor(),
		latency: metrics.GetRegistry().Histogram("discord_webhook"),
		now:     time.Now,
	}
}

// Send validates webhookURL and POSTs body to it. Any non-2xx status is an error.
func (c *WebhookClient) Send(webhookURL string, body []byte) error {
	hook, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return err
	}

	start := c.now()
	resp, err := dispatcher.Do(c.doer, dispatcher.Request{
		Method:      fasthttp.MethodPost,
		URL:         hook.URL,
		ContentType: "application/json",
		Headers:     map[string]string{"User-Agent": WebhookUserAgent},
		Body:        body,
	}, WebhookTimeout)
	if err != nil {
		if dispatcher.IsTimeout(err) {
			return ErrWebhookTimeout
		}
		return err
	}
	c.latency.Observe(c.now().Sub(start))
	c.limits.UpdateFromResponse(hook.Route(), resp, c.now())

	if resp.OK() {
		return nil
	}

	summary := summarize(resp.Body)
	if summary == "" {
		return fmt.Errorf("Discord responded with status %d", resp.StatusCode)
	}
	return fmt.Errorf("Discord responded with status %d %s", resp.StatusCode, summary)
}

// SendParams marshals params and sends them.
func (c *WebhookClient) SendParams(webhookURL string, params *discordgo.WebhookParams) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	return c.Send(webhookURL, body)
}

// Bucket returns the last rate-limit state Discord reported for webhookURL
// and whether that bucket is exhausted right now.
func (c *WebhookClient) Bucket(webhookURL string) (*dispatcher.RateLimitBucket, bool) {
	hook, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, false
	}
	b := c.limits.GetBucket(hook.Route())
	if b == nil {
		return nil, false
	}
	return b, !c.limits.CanExecute(hook.Route(), c.now())
}

func summarize(body []byte) string {
	text := strings.Join(strings.Fields(string(body)), " ")
	if r := []rune(text); len(r) > maxErrorSummary {
		text = string(r[:maxErrorSummary])
	}
	return text
}
