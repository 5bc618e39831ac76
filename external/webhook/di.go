package webhook

import (
	"github.com/samber/do/v2"

	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/webhook"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (webhook.Sender, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPSender(c.TranscriptWebhookURL), nil
	})
}
