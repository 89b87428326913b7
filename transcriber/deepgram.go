package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const deepgramBaseURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	apiKey  string
	lang    string
	baseURL string
	client  *TracedClient
}

func NewDeepgram(apiKey, lang string) *Deepgram {
	if lang == "" {
		lang = "en"
	}
	return &Deepgram{
		apiKey:  apiKey,
		lang:    lang,
		baseURL: deepgramBaseURL,
		client:  NewTracedClient(),
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

// WarmConnection pre-opens the TLS session; safe to skip.
func (d *Deepgram) WarmConnection() {
	d.client.WarmConnection("https://api.deepgram.com")
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
		Channels int     `json:"channels"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

func (d *Deepgram) Transcribe(ctx context.Context, audio []byte, format string) (*Result, error) {
	contentType := "audio/flac"
	if format == "mp3" {
		contentType = "audio/mpeg"
	}

	q := url.Values{}
	q.Set("model", "nova-3")
	q.Set("language", d.lang)

	req, err := http.NewRequestWithContext(ctx, "POST", d.baseURL+"?"+q.Encode(), bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("deepgram API error %d: %s", resp.StatusCode, string(resp.Body))
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return nil, fmt.Errorf("deepgram response parse error: %w", err)
	}

	var text string
	var confidence float64
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		alt := dgResp.Results.Channels[0].Alternatives[0]
		text = alt.Transcript
		confidence = alt.Confidence
	}

	remaining := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-remaining", "x-ratelimit-remaining", "ratelimit-remaining")
	limit := firstNonEmpty(resp.Header,
		"x-dg-ratelimit-limit", "x-ratelimit-limit", "ratelimit-limit")

	return &Result{
		Text:       text,
		Confidence: confidence,
		Duration:   dgResp.Metadata.Duration,
		RateLimit:  remaining + "/" + limit,
		Metrics:    resp.Metrics,
	}, nil
}
