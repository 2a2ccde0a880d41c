//go:build !govips || !cgo

package decode

func Startup() error {
	return nil
}

func Shutdown() {}

// DefaultCodec is the codec selected by build tags.
func DefaultCodec() Codec {
	return StdCodec{}
}
