package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type nativeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type nativeOptions struct {
	Temperature float32 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type nativeRequest struct {
	Model    string          `json:"model"`
	Options  nativeOptions   `json:"options"`
	Messages []nativeMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type nativeResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

func (g *Gateway) chatNative(ctx context.Context, system, user string) (string, error) {
	buf, err := json.Marshal(nativeRequest{
		Model: g.cfg.Model,
		Options: nativeOptions{
			Temperature: g.cfg.Temperature,
			NumPredict:  g.cfg.MaxTokens,
		},
		Messages: []nativeMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.nativeURL, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("native chat API error: %s (%s)", resp.Status, truncate(body, 512))
	}

	var parsed nativeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return parsed.Message.Content, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
