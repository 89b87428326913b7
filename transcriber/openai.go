package transcriber

import (
	"bytes"
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	client *openai.Client
	lang   string
}

func NewOpenAI(apiKey, lang string) *OpenAI {
	return &OpenAI{
		client: openai.NewClient(apiKey),
		lang:   lang,
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, format string) (*Result, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "chunk." + format,
		Reader:   bytes.NewReader(audio),
		Language: o.lang,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}
	return &Result{Text: resp.Text}, nil
}

// OpenAISummarizer condenses transcripts through chat completion.
type OpenAISummarizer struct {
	client *openai.Client
	model  string
}

func NewOpenAISummarizer(apiKey string) *OpenAISummarizer {
	return &OpenAISummarizer{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4oMini,
	}
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, prompt, text string) (string, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai summarization: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai summarization: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
