package server

import (
	"github.com/samber/do/v2"

	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
	"github.com/RijinRaju/healthcare-translation-backend/internal/relay"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		return New(
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*relay.Manager](i),
		), nil
	})
}
