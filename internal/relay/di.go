package relay

import (
	"github.com/samber/do/v2"

	"github.com/RijinRaju/healthcare-translation-backend/internal/audio"
	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/metrics"
	"github.com/RijinRaju/healthcare-translation-backend/internal/repository"
	"github.com/RijinRaju/healthcare-translation-backend/internal/transcriber"
	"github.com/RijinRaju/healthcare-translation-backend/internal/translator"
	"github.com/RijinRaju/healthcare-translation-backend/internal/webhook"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*metrics.Metrics, error) {
		return metrics.New(), nil
	})
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		return NewManager(ManagerDeps{
			Config:        do.MustInvoke[*config.Config](i),
			Transcriber:   do.MustInvoke[transcriber.Transcriber](i),
			Translator:    do.MustInvoke[translator.Translator](i),
			Repository:    do.MustInvoke[repository.Repository](i),
			WebhookSender: do.MustInvoke[webhook.Sender](i),
			Metrics:       do.MustInvoke[*metrics.Metrics](i),
			DecoderFunc:   do.MustInvoke[audio.DecoderFactory](i),
		}), nil
	})
}
