// Package llmprod is a worked example of an external-collaborator
// transformer: a producer whose ApplyFunc makes a network call to OpenAI's
// chat completion API instead of computing something locally. dagml has
// no opinion about what an ApplyFunc does internally, as long as it
// behaves as a pure function of its declared inputs from the executor's
// point of view.
package llmprod

import (
	"context"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/smilemakc/dagml/internal/core"
	"github.com/smilemakc/dagml/internal/engerr"
)

// CompletionOptions configures a chat-completion producer. Model defaults
// to "gpt-4o" and MaxTokens/Temperature are passed through unchanged (zero
// value means "let the API choose").
type CompletionOptions struct {
	Model       string
	MaxTokens   int
	Temperature float64
	// Timeout bounds a single completion call; zero means no explicit
	// per-call timeout beyond the caller's context.
	Timeout time.Duration
}

func (o CompletionOptions) withDefaults() CompletionOptions {
	if o.Model == "" {
		o.Model = "gpt-4o"
	}
	return o
}

// CompletionUsage carries token accounting for one completion call, for a
// caller wiring a monitor.Collector-style metrics sink alongside it.
type CompletionUsage struct {
	PromptTokens     int
	CompletionTokens int
	Latency          time.Duration
}

// UsageRecorder receives usage after each completion call; implementations
// must be safe for concurrent use since the executor may apply this
// producer from multiple worker goroutines within a generation.
type UsageRecorder interface {
	RecordCompletionUsage(CompletionUsage)
}

// NewChatCompletionTransformer builds a PreparedTransformer with a single
// prompt-string input, whose ApplyFunc calls OpenAI's chat completion API
// and returns the trimmed response content as its output. apiKey is
// resolved once at construction time -- the caller supplies the already-
// resolved key, since dagml producers have no execution-context variable
// store to pull a fallback from. recorder may be nil.
func NewChatCompletionTransformer(name string, apiKey string, opts CompletionOptions, recorder UsageRecorder, prompt core.TypedInput[string]) *core.PreparedTransformer {
	opts = opts.withDefaults()
	client := openai.NewClient(apiKey)

	return core.NewPreparedTransformer(name, false, func(inputs []any) any {
		promptText, _ := inputs[0].(string)

		ctx := context.Background()
		var cancel context.CancelFunc
		if opts.Timeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		req := openai.ChatCompletionRequest{
			Model:       opts.Model,
			MaxTokens:   opts.MaxTokens,
			Temperature: float32(opts.Temperature),
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: promptText},
			},
		}

		start := time.Now()
		resp, err := client.CreateChatCompletion(ctx, req)
		latency := time.Since(start)
		if err != nil {
			panic(engerr.ExecutionFailure(err, "openai completion request failed for %s", name))
		}
		if len(resp.Choices) == 0 {
			panic(engerr.ExecutionFailure(nil, "openai returned no choices for %s", name))
		}

		if recorder != nil {
			recorder.RecordCompletionUsage(CompletionUsage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				Latency:          latency,
			})
		}

		return strings.TrimSpace(resp.Choices[0].Message.Content)
	}, prompt.Producer())
}
