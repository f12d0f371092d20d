package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"stickies/audio"
	"stickies/encoder"
)

const openaiAPIURL = "https://api.openai.com/v1/audio/transcriptions"

type OpenAI struct {
	client *TracedClient
	apiURL string
	apiKey string
	lang   string
}

func NewOpenAI(apiKey, lang string) *OpenAI {
	return &OpenAI{
		client: NewTracedClient("openai"),
		apiURL: openaiAPIURL,
		apiKey: apiKey,
		lang:   lang,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Recognize(ctx context.Context, sample audio.Sample) (string, error) {
	flac, err := encoder.FLAC(sample.PCM, sample.SampleRate)
	if err != nil {
		return "", fmt.Errorf("openai: encode: %w", err)
	}

	body, contentType, err := multipartAudio(flac, "flac", map[string]string{
		"model":           "gpt-4o-transcribe",
		"response_format": "json",
		"language":        o.lang,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.apiURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", unavailable(ctx, "openai", err)
	}
	if resp.StatusCode != 200 {
		return "", statusError("openai", resp.StatusCode, resp.Body)
	}

	var oResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &oResp); err != nil {
		return "", fmt.Errorf("openai: %w: response parse error: %v", ErrServiceUnavailable, err)
	}
	return finish(oResp.Text)
}
