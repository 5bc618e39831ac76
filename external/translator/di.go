package translator

import (
	"github.com/samber/do/v2"

	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (translator.Translator, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewAnthropicTranslator(AnthropicConfig{
			APIKey:    c.AnthropicAPIKey,
			Model:     c.TranslationModel,
			CacheSize: c.TranslationCacheSize,
		}), nil
	})
}
