package main

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/toolrelay/config"
	"github.com/hupe1980/toolrelay/model"
	"github.com/hupe1980/toolrelay/model/anthropic"
	"github.com/hupe1980/toolrelay/model/gollm"
	"github.com/hupe1980/toolrelay/model/openai"
)

// newModel creates the backend selected by cfg.Provider.
func newModel(cfg config.Config) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey()
			o.BaseURL = cfg.BaseURL
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.APIKey = cfg.APIKey()
		}), nil
	case config.ProviderGollm:
		m, err := gollm.NewModel(func(o *gollm.Options) {
			o.Provider = cfg.GollmProvider
			o.Model = cfg.Model
			o.APIKey = cfg.APIKey()
			o.MaxTokens = int(cfg.DefaultMaxOutputTokens)
			o.Temperature = cfg.DefaultTemperature
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderMock:
		return model.NewMockModel(cfg.Model, config.ProviderMock), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
}
