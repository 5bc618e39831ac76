package audio

// Decoder converts client audio frames into the LINEAR16 PCM the
// transcription vendors expect.
type Decoder interface {
	Decode(frame []byte) ([]byte, error)
	Close()
}

// DecoderFactory builds a decoder for the encoding named in the session's
// control message. Unknown encodings return an error before the session
// goes active.
type DecoderFactory func(encoding string) (Decoder, error)

const (
	EncodingLinear16 = "linear16"
	EncodingOpus     = "opus"
)
