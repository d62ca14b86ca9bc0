// Package llm sends prompts to a chat model over an OpenAI-compatible
// endpoint with a native chat endpoint as fallback.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/starford/chatnotes/internal/observability"
)

// FailureMarker prefixes the text returned when every attempt failed.
const FailureMarker = "[LLM request failed]"

// Wire protocol names, also used as metric labels.
const (
	ProtocolOpenAI = "openai"
	ProtocolNative = "native"
)

const defaultTimeout = 180 * time.Second

var errEmptyContent = errors.New("model returned empty content")

// Config describes the model endpoint.
type Config struct {
	// BaseURL is the server root for a local model (e.g. http://localhost:11434),
	// or the full API base (e.g. https://api.openai.com/v1) when Remote is set.
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	APIKey      string
	// Timeout bounds each attempt separately.
	Timeout time.Duration
	// Remote selects a hosted OpenAI-compatible API. The native protocol is
	// never attempted against it.
	Remote         bool
	EnableFallback bool
	HTTPClient     *http.Client
}

// Result is the outcome of Chat. On total failure Text holds a sentinel
// starting with FailureMarker, Protocol is empty and Err is set.
type Result struct {
	Text     string
	Protocol string
	Err      error
}

// Failed reports whether no protocol produced text.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Gateway talks to the configured model endpoint.
type Gateway struct {
	cfg       Config
	client    *openai.Client
	http      *http.Client
	nativeURL string
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// New builds a gateway. metrics and logger may be nil.
func New(cfg Config, metrics *observability.Metrics, logger *slog.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.HTTPClient = httpClient
	g := &Gateway{
		cfg:     cfg,
		http:    httpClient,
		metrics: metrics,
		logger:  logger,
	}
	if cfg.Remote {
		if cfg.BaseURL != "" {
			oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
	} else {
		root := serverRoot(cfg.BaseURL)
		oc.BaseURL = root + "/v1"
		g.nativeURL = root + "/api/chat"
	}
	g.client = openai.NewClientWithConfig(oc)
	return g
}

// Model returns the configured model identifier.
func (g *Gateway) Model() string {
	return g.cfg.Model
}

// Chat sends a system/user message pair. It tries the OpenAI-compatible
// protocol first and the native protocol once if that yields no text. It
// never returns an error: failures are folded into the Result.
//
// Attempts are detached from ctx cancellation and run until their own
// timeout, so a client hanging up does not abort a summary mid-flight.
func (g *Gateway) Chat(ctx context.Context, system, user string) Result {
	text, primaryErr := g.attempt(ctx, ProtocolOpenAI, system, user, g.chatOpenAI)
	if primaryErr == nil {
		return Result{Text: text, Protocol: ProtocolOpenAI}
	}
	if !g.fallbackEnabled() {
		g.logger.Warn("llm: request failed", slog.String("protocol", ProtocolOpenAI), slog.String("error", primaryErr.Error()))
		return Result{
			Text: fmt.Sprintf("%s %v", FailureMarker, primaryErr),
			Err:  primaryErr,
		}
	}

	g.logger.Warn("llm: primary protocol failed, trying native chat",
		slog.String("error", primaryErr.Error()))
	text, fallbackErr := g.attempt(ctx, ProtocolNative, system, user, g.chatNative)
	if fallbackErr == nil {
		return Result{Text: text, Protocol: ProtocolNative}
	}

	err := fmt.Errorf("primary: %w; fallback: %w", primaryErr, fallbackErr)
	g.logger.Warn("llm: all protocols failed", slog.String("error", err.Error()))
	return Result{
		Text: fmt.Sprintf("%s %v", FailureMarker, err),
		Err:  err,
	}
}

func (g *Gateway) fallbackEnabled() bool {
	return g.cfg.EnableFallback && !g.cfg.Remote && g.nativeURL != ""
}

type chatFunc func(ctx context.Context, system, user string) (string, error)

func (g *Gateway) attempt(ctx context.Context, protocol, system, user string, fn chatFunc) (string, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := fn(attemptCtx, system, user)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyContent
	}
	g.metrics.ObserveLLMAttempt(protocol, err == nil, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("%s: %w", protocol, err)
	}
	return strings.TrimSpace(text), nil
}

func (g *Gateway) chatOpenAI(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: openaiTemperature(g.cfg.Temperature),
		MaxTokens:   g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// openaiTemperature maps 0 to the smallest positive float32. go-openai omits a
// zero temperature from the request, and the server would then apply its own
// default.
func openaiTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// serverRoot strips a trailing slash and an OpenAI-style /v1 suffix so both
// "http://host:11434" and "http://host:11434/v1" address the same server.
func serverRoot(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	base = strings.TrimSuffix(base, "/v1")
	if base == "" {
		return "http://localhost:11434"
	}
	return base
}
