package transcriber

import (
	"github.com/samber/do/v2"

	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Transcriber, error) {
		c := do.MustInvoke[*config.Config](i)
		if c.TranscriberProvider == config.ProviderGoogle {
			return NewCloudSpeechTranscriber(CloudSpeechConfig{
				ProjectID:       c.GoogleCloudProjectID,
				CredentialsJSON: c.GoogleCloudCredentialsJSON,
				Language:        c.DefaultSourceLanguage,
				Location:        c.GoogleCloudSpeechLocation,
				Model:           c.GoogleCloudSpeechModel,
				SampleRateHertz: c.SampleRateHertz,
			}), nil
		}
		return NewDeepgramTranscriber(DeepgramConfig{
			APIKey:          c.DeepgramAPIKey,
			Model:           c.DeepgramModel,
			Language:        c.DefaultSourceLanguage,
			SampleRateHertz: c.SampleRateHertz,
			MaxRetries:      c.MaxRetries,
			RetryBaseDelay:  c.RetryBaseDelay,
		}), nil
	})
}
