package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cexll/agentsdk-go/pkg/api"
	"github.com/cexll/agentsdk-go/pkg/model"

	"github.com/sagrawal11/alfred-sub000/internal/config"
)

const (
	classifyPrompt = `You are an intent classifier for a personal logging assistant.
Classify the message into exactly one intent:
gym_workout, food_logging, water_logging, sleep_logging, todo_add, todo_list,
todo_complete, reminder_set, assignment_add, stats_query, unknown.

Return strict JSON object: {"intent":"..."}

Message:
%s`

	entitiesPrompt = `Extract entities from the message for a personal logging assistant.
Recognized keys: food, amount, duration, time, task, subject.
Values are strings; amounts keep their unit (e.g. "500ml", "2l", "8 hours").

Return strict JSON object: {"entities":{"key":["value",...]}}

Message:
%s`

	guessPrompt = `The message below could not be routed by a personal logging assistant.
Guess the most likely intent from:
gym_workout, food_logging, water_logging, sleep_logging, todo_add, todo_list,
todo_complete, reminder_set, assignment_add, stats_query.

Return strict JSON object: {"intent":"...","confidence":0.0,"reason":"..."}
Use confidence 0 when you have no real guess.

Message:
%s`
)

// Guess is a low-confidence intent estimate. Never executed directly; the
// engine turns it into a yes/no confirmation.
type Guess struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Classifier is the external NLP collaborator.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
	ExtractEntities(ctx context.Context, text string) (map[string][]string, error)
	GuessIntent(ctx context.Context, text string) (*Guess, error)
}

// Runtime is the slice of the agent runtime the classifier needs
// (allows mocking in tests).
type Runtime interface {
	Run(ctx context.Context, req api.Request) (*api.Response, error)
	Close()
}

type runtimeAdapter struct {
	rt *api.Runtime
}

func (r *runtimeAdapter) Run(ctx context.Context, req api.Request) (*api.Response, error) {
	return r.rt.Run(ctx, req)
}

func (r *runtimeAdapter) Close() {
	r.rt.Close()
}

// NewRuntime builds the default agentsdk-go runtime for classification calls.
func NewRuntime(cfg *config.Config) (Runtime, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("API key not set. Run 'alfred onboard' or set ALFRED_API_KEY / ANTHROPIC_API_KEY")
	}

	var provider api.ModelFactory
	switch cfg.Provider.Type {
	case "openai":
		provider = &model.OpenAIProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Provider.Model,
			MaxTokens: cfg.Provider.MaxTokens,
		}
	default: // "anthropic" or empty
		provider = &model.AnthropicProvider{
			APIKey:    cfg.Provider.APIKey,
			BaseURL:   cfg.Provider.BaseURL,
			ModelName: cfg.Provider.Model,
			MaxTokens: cfg.Provider.MaxTokens,
		}
	}

	rt, err := api.New(context.Background(), api.Options{
		ModelFactory:  provider,
		SystemPrompt:  "You classify short personal messages. Reply with strict JSON only.",
		MaxIterations: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create classifier runtime: %w", err)
	}
	return &runtimeAdapter{rt: rt}, nil
}

// Client implements Classifier over a Runtime.
type Client struct {
	rt Runtime
}

func New(rt Runtime) *Client {
	return &Client{rt: rt}
}

// Close releases the underlying runtime.
func (c *Client) Close() {
	if c.rt != nil {
		c.rt.Close()
	}
}

func (c *Client) Classify(ctx context.Context, text string) (string, error) {
	out, err := c.complete(ctx, fmt.Sprintf(classifyPrompt, text))
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	var decoded struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		return "", fmt.Errorf("parse classify result: %w", err)
	}
	intent := strings.ToLower(strings.TrimSpace(decoded.Intent))
	if !IsKnownIntent(intent) {
		return IntentUnknown, nil
	}
	return intent, nil
}

func (c *Client) ExtractEntities(ctx context.Context, text string) (map[string][]string, error) {
	out, err := c.complete(ctx, fmt.Sprintf(entitiesPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("extract entities: %w", err)
	}
	var decoded struct {
		Entities map[string][]string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		return nil, fmt.Errorf("parse entities result: %w", err)
	}
	if decoded.Entities == nil {
		return map[string][]string{}, nil
	}
	return decoded.Entities, nil
}

func (c *Client) GuessIntent(ctx context.Context, text string) (*Guess, error) {
	out, err := c.complete(ctx, fmt.Sprintf(guessPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("guess intent: %w", err)
	}
	var g Guess
	if err := json.Unmarshal([]byte(out), &g); err != nil {
		return nil, fmt.Errorf("parse guess result: %w", err)
	}
	g.Intent = strings.ToLower(strings.TrimSpace(g.Intent))
	if !IsKnownIntent(g.Intent) || g.Confidence <= 0 {
		return nil, nil
	}
	if g.Confidence > 1 {
		g.Confidence = 1
	}
	return &g, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.rt.Run(ctx, api.Request{Prompt: prompt, SessionID: "classifier"})
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Result == nil {
		return "", fmt.Errorf("empty response")
	}
	out := strings.TrimSpace(resp.Result.Output)
	// Models occasionally wrap JSON in a code fence.
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty content")
	}
	return out, nil
}
