package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"stickies/audio"
	"stickies/encoder"
)

const deepgramAPIURL = "https://api.deepgram.com/v1/listen"

type Deepgram struct {
	client *TracedClient
	apiURL string
	apiKey string
	lang   string
}

func NewDeepgram(apiKey, lang string) *Deepgram {
	return &Deepgram{
		client: NewTracedClient("deepgram"),
		apiURL: deepgramAPIURL,
		apiKey: apiKey,
		lang:   lang,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
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

func (d *Deepgram) endpoint() string {
	q := url.Values{}
	q.Set("model", "nova-3")
	q.Set("smart_format", "true")
	if d.lang != "" {
		q.Set("language", d.lang)
	} else {
		q.Set("language", "en")
	}
	return d.apiURL + "?" + q.Encode()
}

func (d *Deepgram) Recognize(ctx context.Context, sample audio.Sample) (string, error) {
	flac, err := encoder.FLAC(sample.PCM, sample.SampleRate)
	if err != nil {
		return "", fmt.Errorf("deepgram: encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.endpoint(), bytes.NewReader(flac))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+d.apiKey)
	req.Header.Set("Content-Type", "audio/flac")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", unavailable(ctx, "deepgram", err)
	}
	if resp.StatusCode != 200 {
		return "", statusError("deepgram", resp.StatusCode, resp.Body)
	}

	var dgResp deepgramResponse
	if err := json.Unmarshal(resp.Body, &dgResp); err != nil {
		return "", fmt.Errorf("deepgram: %w: response parse error: %v", ErrServiceUnavailable, err)
	}

	var text string
	if len(dgResp.Results.Channels) > 0 && len(dgResp.Results.Channels[0].Alternatives) > 0 {
		text = dgResp.Results.Channels[0].Alternatives[0].Transcript
	}
	return finish(text)
}
