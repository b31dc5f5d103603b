package summarize

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// openaiComplete summarizes text through the OpenAI chat completions API.
func openaiComplete(ctx context.Context, apiKey, model, text string) (string, error) {
	client := openai.NewClient(option.WithAPIKey(apiKey))

	response, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPromptPrefix + text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}
	return response.Choices[0].Message.Content, nil
}
