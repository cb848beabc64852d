package transcriber

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"voicenote/log"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultTemperature = 0.3
)

type Gemini struct {
	apiKey      string
	model       string
	temperature float32
	baseURL     string
	httpClient  *http.Client

	mu     sync.Mutex
	client *genai.Client
}

type Option func(*Gemini)

func WithModel(model string) Option {
	return func(g *Gemini) {
		if model != "" {
			g.model = model
		}
	}
}

func WithTemperature(t float32) Option { return func(g *Gemini) { g.temperature = t } }

// WithBaseURL points the SDK at another endpoint, used by tests.
func WithBaseURL(url string) Option { return func(g *Gemini) { g.baseURL = url } }

func WithHTTPClient(c *http.Client) Option { return func(g *Gemini) { g.httpClient = c } }

// NewGemini never fails: a missing key surfaces as ErrNoCredential on the
// first Transcribe call.
func NewGemini(apiKey string, opts ...Option) *Gemini {
	g := &Gemini{
		apiKey:      apiKey,
		model:       DefaultModel,
		temperature: DefaultTemperature,
		httpClient:  NewHTTPClient(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) genaiClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	if g.apiKey == "" {
		return nil, ErrNoCredential
	}
	cfg := &genai.ClientConfig{
		APIKey:     g.apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: g.httpClient,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.client = client
	return client, nil
}

func (g *Gemini) Transcribe(ctx context.Context, audioBase64, mimeType string) (*Result, error) {
	data, err := base64.StdEncoding.DecodeString(audioBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	client, err := g.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(UserInstruction),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	}

	start := time.Now()
	traced, metrics, finish := traceRequest(ctx)
	resp, err := client.Models.GenerateContent(traced, g.model, contents, config)
	finish()
	if err != nil {
		log.Errorf("gemini request failed after %dms: %v", metrics.Total.Milliseconds(), err)
		return nil, fmt.Errorf("gemini: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}
	return &Result{
		Text:     text,
		Model:    g.model,
		Metrics:  metrics,
		Duration: time.Since(start),
	}, nil
}
