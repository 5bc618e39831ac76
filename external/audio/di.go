package audio

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/RijinRaju/healthcare-translation-backend/internal/audio"
	"github.com/RijinRaju/healthcare-translation-backend/internal/config"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (audio.DecoderFactory, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return func(encoding string) (audio.Decoder, error) {
			switch encoding {
			case "", audio.EncodingLinear16:
				return PassthroughDecoder{}, nil
			case audio.EncodingOpus:
				return NewOpusDecoder(cfg.SampleRateHertz)
			default:
				return nil, fmt.Errorf("unsupported audio encoding %q", encoding)
			}
		}, nil
	})
}
