// Package translate is the machine translation collaborator behind the AI
// assist endpoint. The locale sync engine never calls it.
package translate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/starford/raido/internal/apperr"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// Translator translates a batch of texts between two locales. The result
// has one entry per input text, in order.
type Translator interface {
	Translate(ctx context.Context, texts []string, from, to string) ([]string, error)
}

// Identity returns every text unchanged. It serves development setups
// without an API key.
type Identity struct{}

// Translate implements Translator.
func (Identity) Translate(_ context.Context, texts []string, _, _ string) ([]string, error) {
	return append([]string(nil), texts...), nil
}

var promptTemplate = template.Must(template.New("translate").Parse(`You translate user interface text for a catalog of image and video generation workflow templates.
Translate each numbered text from {{.From}} to {{.To}}. Keep product names, model names and technical terms unchanged.
Reply with only a JSON array of {{len .Texts}} strings, in the same order, and nothing else.
{{range $i, $t := .Texts}}
{{$i}}. {{$t}}{{end}}
`))

// Anthropic translates with the Anthropic Messages API.
type Anthropic struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	retryWindow time.Duration
}

// NewAnthropic creates a translator. An empty model selects DefaultModel.
func NewAnthropic(apiKey, model string) (*Anthropic, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("translate: anthropic api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	return &Anthropic{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		maxTokens:   4096,
		retryWindow: 30 * time.Second,
	}, nil
}

// Translate implements Translator.
func (a *Anthropic) Translate(ctx context.Context, texts []string, from, to string) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}
	if from == to {
		return append([]string(nil), texts...), nil
	}

	var prompt strings.Builder
	if err := promptTemplate.Execute(&prompt, struct {
		From, To string
		Texts    []string
	}{from, to, texts}); err != nil {
		return nil, fmt.Errorf("translate: render prompt: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt.String())),
		},
	}

	var reply string
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxElapsedTime = a.retryWindow
	err := backoff.Retry(func() error {
		message, err := a.client.Messages.New(ctx, params)
		if err != nil {
			if isRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(message.Content) == 0 || message.Content[0].Type != "text" {
			return backoff.Permanent(errors.New("unexpected response format: no text block"))
		}
		reply = message.Content[0].Text
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return nil, fmt.Errorf("translate: %w", err)
	}
	return ParseReply(reply, len(texts))
}

// ParseReply extracts the JSON string array from a model reply.
func ParseReply(reply string, want int) ([]string, error) {
	start := strings.Index(reply, "[")
	end := strings.LastIndex(reply, "]")
	if start < 0 || end < start || !gjson.Valid(reply[start:end+1]) {
		return nil, fmt.Errorf("translate: reply is not a JSON array")
	}
	items := gjson.Parse(reply[start : end+1]).Array()
	if len(items) != want {
		return nil, fmt.Errorf("translate: got %d translations for %d texts", len(items), want)
	}
	out := make([]string, len(items))
	for i, it := range items {
		if it.Type != gjson.String {
			return nil, fmt.Errorf("translate: translation %d is not a string", i)
		}
		out[i] = it.Str
	}
	return out, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

// Validate checks a translation request.
func Validate(texts []string, from, to string) error {
	if from == "" || to == "" {
		return apperr.Invalid("from and to locales are required")
	}
	if len(texts) == 0 {
		return apperr.Invalid("texts must not be empty")
	}
	return nil
}
