package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"

	"stickies/audio"
	"stickies/encoder"
)

const (
	groqAPIURL = "https://api.groq.com/openai/v1/audio/transcriptions"

	// segments above this are treated as silence the model hallucinated over
	noSpeechCutoff = 0.8
)

type Groq struct {
	client *TracedClient
	apiURL string
	apiKey string
	lang   string
}

func NewGroq(apiKey, lang string) *Groq {
	return &Groq{
		client: NewTracedClient("groq"),
		apiURL: groqAPIURL,
		apiKey: apiKey,
		lang:   lang,
	}
}

func (g *Groq) Name() string { return "groq" }

type groqResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Text         string  `json:"text"`
		NoSpeechProb float64 `json:"no_speech_prob"`
		AvgLogProb   float64 `json:"avg_logprob"`
	} `json:"segments"`
}

func (g *Groq) Recognize(ctx context.Context, sample audio.Sample) (string, error) {
	flac, err := encoder.FLAC(sample.PCM, sample.SampleRate)
	if err != nil {
		return "", fmt.Errorf("groq: encode: %w", err)
	}

	body, contentType, err := multipartAudio(flac, "flac", map[string]string{
		"model":           "whisper-large-v3-turbo",
		"response_format": "verbose_json",
		"language":        g.lang,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.apiURL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", unavailable(ctx, "groq", err)
	}
	if resp.StatusCode != 200 {
		return "", statusError("groq", resp.StatusCode, resp.Body)
	}

	var gResp groqResponse
	if err := json.Unmarshal(resp.Body, &gResp); err != nil {
		return "", fmt.Errorf("groq: %w: response parse error: %v", ErrServiceUnavailable, err)
	}

	if len(gResp.Segments) > 0 {
		var kept bytes.Buffer
		for _, seg := range gResp.Segments {
			if seg.NoSpeechProb > noSpeechCutoff {
				continue
			}
			kept.WriteString(seg.Text)
		}
		return finish(kept.String())
	}
	return finish(gResp.Text)
}

func multipartAudio(data []byte, format string, fields map[string]string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &body, writer.FormDataContentType(), nil
}
