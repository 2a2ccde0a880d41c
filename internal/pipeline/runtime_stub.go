//go:build !govips || !cgo

package pipeline

func newEncoder() Encoder {
	return stdlibEncoder{}
}
