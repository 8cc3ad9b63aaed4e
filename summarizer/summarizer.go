package summarizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"localnotes/log"
)

var ErrSummarization = errors.New("summarization failed")

type Request struct {
	Model    string
	UseCase  string
	Language string // optional output language hint
	Host     string // server base URL, e.g. http://127.0.0.1:11434
}

type Summarizer interface {
	Summarize(ctx context.Context, transcript string, req Request) (string, error)
}

// Prompt builds the system prompt for a use case.
func Prompt(useCase, language string) string {
	if useCase == "" {
		useCase = "conversation"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are a note-taking assistant. The following is a transcript from a %s.\n", useCase)
	b.WriteString("Create well-structured, clear notes from this transcript.\n")
	b.WriteString("Choose the most appropriate format and sections for this type of content.\n")
	b.WriteString("Be concise but thorough.")
	if language != "" {
		fmt.Fprintf(&b, "\nWrite the notes in %s.", language)
	}
	return b.String()
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinking removes reasoning blocks emitted by models such as qwen3.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}

// Ollama talks to the OpenAI-compatible /v1 API of an Ollama server and
// streams the completion.
type Ollama struct {
	HTTPClient  *http.Client
	Temperature float32
	// OnProgress, if set, receives the number of characters streamed so far.
	OnProgress func(chars int)
}

func NewOllama() *Ollama {
	return &Ollama{HTTPClient: &http.Client{Timeout: 10 * time.Minute}, Temperature: 0.3}
}

func (o *Ollama) client(host string) *openai.Client {
	cfg := openai.DefaultConfig("ollama")
	cfg.BaseURL = strings.TrimRight(host, "/") + "/v1"
	if o.HTTPClient != nil {
		cfg.HTTPClient = o.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

func (o *Ollama) Summarize(ctx context.Context, transcript string, req Request) (string, error) {
	start := time.Now()
	stream, err := o.client(req.Host).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Temperature: o.Temperature,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: Prompt(req.UseCase, req.Language)},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSummarization, err)
	}
	defer stream.Close()

	var out strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSummarization, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		out.WriteString(resp.Choices[0].Delta.Content)
		if o.OnProgress != nil {
			o.OnProgress(out.Len())
		}
	}

	summary := StripThinking(out.String())
	if summary == "" {
		return "", fmt.Errorf("%w: empty response from %s", ErrSummarization, req.Model)
	}
	log.SummaryMetrics(req.Model, req.UseCase, len(transcript), len(summary), time.Since(start))
	return summary, nil
}
