package translator

import (
	"context"
	"errors"
)

// ErrTranslationFailed marks a translation request the vendor could not
// serve.
var ErrTranslationFailed = errors.New("translation failed")

type Request struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
}

type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}
