package speech

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hammamikhairi/rendezvouscoach/internal/domain"
	"github.com/hammamikhairi/rendezvouscoach/internal/logger"
)

// Synthesizer turns text into WAV audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	// Profile identifies everything that changes the audio for a given
	// text. It keys the audio cache.
	Profile() string
}

var _ Synthesizer = (*AzureClient)(nil)

// AzureOption configures the Azure TTS client.
type AzureOption func(*AzureClient)

// WithVoice sets voice, language and prosody. Zero fields keep the
// client defaults.
func WithVoice(v domain.VoiceConfig) AzureOption {
	return func(c *AzureClient) {
		if v.Name != "" {
			c.voice.Name = v.Name
		}
		if v.Language != "" {
			c.voice.Language = v.Language
		}
		c.voice.Rate = v.Rate
		c.voice.Pitch = v.Pitch
		c.voice.Volume = v.Volume
	}
}

// WithAudioFormat sets the audio output format.
func WithAudioFormat(format string) AzureOption {
	return func(c *AzureClient) {
		c.format = format
	}
}

// WithHTTPTimeout sets the HTTP client timeout for TTS requests.
func WithHTTPTimeout(d time.Duration) AzureOption {
	return func(c *AzureClient) {
		c.httpClient.Timeout = d
	}
}

// WithEndpoint overrides the regional endpoint URL.
func WithEndpoint(url string) AzureOption {
	return func(c *AzureClient) {
		c.endpoint = url
	}
}

// AzureClient synthesizes speech with the Azure Cognitive Services REST
// API. Voice settings are passed through as SSML without interpretation.
type AzureClient struct {
	subscriptionKey string
	endpoint        string
	voice           domain.VoiceConfig
	format          string
	httpClient      *http.Client
	log             *logger.Logger
}

// NewAzureClient creates an Azure TTS client for the given region.
func NewAzureClient(key, region string, log *logger.Logger, opts ...AzureOption) *AzureClient {
	c := &AzureClient{
		subscriptionKey: key,
		endpoint:        fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", region),
		voice:           domain.VoiceConfig{Name: "en-US-AvaNeural", Language: "en-US"},
		format:          DefaultAudioFormat,
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		log:             log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Voice returns the configured voice.
func (c *AzureClient) Voice() domain.VoiceConfig { return c.voice }

// Profile implements Synthesizer.
func (c *AzureClient) Profile() string {
	v := c.voice
	return fmt.Sprintf("%s|%s|%g|%g|%g|%s", v.Name, v.Language, v.Rate, v.Pitch, v.Volume, c.format)
}

// Synthesize converts text to WAV bytes. Failures come back as
// *domain.SynthesisError.
func (c *AzureClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml := c.buildSSML(text)
	c.log.Debug("synthesizing %d chars with voice %s", len(text), c.voice.Name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, c.fail(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", c.format)
	req.Header.Set("User-Agent", "rendezvouscoach/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("tts request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(fmt.Errorf("reading audio: %w", err))
	}
	c.log.Debug("got %d bytes of audio", len(audio))
	return audio, nil
}

func (c *AzureClient) fail(err error) error {
	return &domain.SynthesisError{Provider: "azure", Err: err}
}

// buildSSML wraps text in a voice element, adding a prosody element when
// any multiplier is set.
func (c *AzureClient) buildSSML(text string) string {
	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(text))

	body := escaped.String()
	if p := prosodyAttrs(c.voice); p != "" {
		body = "<prosody" + p + ">" + body + "</prosody>"
	}
	return fmt.Sprintf(
		`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		c.voice.Language, c.voice.Name, body,
	)
}

// prosodyAttrs renders multipliers as relative percentages: 1.2 -> +20%.
func prosodyAttrs(v domain.VoiceConfig) string {
	var b strings.Builder
	for _, a := range []struct {
		name string
		mult float64
	}{{"rate", v.Rate}, {"pitch", v.Pitch}, {"volume", v.Volume}} {
		if a.mult == 0 || a.mult == 1 {
			continue
		}
		fmt.Fprintf(&b, " %s='%+.0f%%'", a.name, (a.mult-1)*100)
	}
	return b.String()
}
