// Package summarize generates article summaries through the user's chosen
// model provider and persists them on the link.
package summarize

import (
	"context"
	"errors"
	"fmt"

	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrNoCredential is returned when the user has not stored an API key
	// for the provider their chosen model belongs to.
	ErrNoCredential = errors.New("no API key configured for the selected model")
	// ErrUnknownModel is returned for a model name no provider serves.
	ErrUnknownModel = errors.New("unknown summarization model")
)

// Provider identifies a model family.
type Provider int

const (
	ProviderOpenAI Provider = iota + 1
	ProviderAnthropic
)

// ProviderForModel resolves a model name to its provider.
func ProviderForModel(model string) (Provider, error) {
	switch model {
	case models.ModelGPT4oMini, models.ModelGPT4o, models.ModelGPT4Turbo:
		return ProviderOpenAI, nil
	case models.ModelClaudeHaiku, models.ModelClaudeSonnet:
		return ProviderAnthropic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
}

const (
	systemPrompt     = "You are a helpful assistant."
	userPromptPrefix = "Summarize the following article:\n\n"
)

// completeFunc produces a completion for the article text with one
// provider.
type completeFunc func(ctx context.Context, apiKey, model, text string) (string, error)

// Dispatcher routes summarization requests to the right provider based on
// the link owner's settings.
type Dispatcher struct {
	db *gorm.DB

	// Provider calls, replaceable in tests.
	openaiComplete    completeFunc
	anthropicComplete completeFunc
}

// NewDispatcher creates a dispatcher backed by the real provider SDKs.
func NewDispatcher(db *gorm.DB) *Dispatcher {
	return &Dispatcher{
		db:                db,
		openaiComplete:    openaiComplete,
		anthropicComplete: anthropicComplete,
	}
}

// Summarize generates and persists a summary for the link. Links that
// already carry a summary are returned untouched. An empty provider
// response leaves the link unmodified.
func (d *Dispatcher) Summarize(ctx context.Context, link *models.Link) (*models.Link, error) {
	if link.Summary != "" {
		return link, nil
	}

	var settings models.UserSetting
	if err := d.db.Where("user_id = ?", link.UserID).First(&settings).Error; err != nil {
		return nil, fmt.Errorf("load user settings: %w", err)
	}

	provider, err := ProviderForModel(settings.SummarizationModel)
	if err != nil {
		return nil, err
	}

	var complete completeFunc
	var apiKey string
	switch provider {
	case ProviderOpenAI:
		complete, apiKey = d.openaiComplete, settings.OpenAIAPIKey
	case ProviderAnthropic:
		complete, apiKey = d.anthropicComplete, settings.AnthropicAPIKey
	}
	if apiKey == "" {
		return nil, ErrNoCredential
	}

	summary, err := complete(ctx, apiKey, settings.SummarizationModel, link.RawTextContent)
	if err != nil {
		return nil, fmt.Errorf("summarize link %d: %w", link.ID, err)
	}
	if summary == "" {
		logrus.WithField("link_id", link.ID).Warn("provider returned an empty summary")
		return link, nil
	}

	link.Summary = summary
	if err := d.db.Model(link).Update("summary", summary).Error; err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"link_id": link.ID,
		"model":   settings.SummarizationModel,
	}).Info("link summarized")
	return link, nil
}
