//go:build !amd64

package jit64

func jitcall(codeSegment, frame uintptr) {
	panic("unsupported GOARCH")
}
