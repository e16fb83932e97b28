//go:build !darwin && !freebsd && !linux

package jit64

const mmapSupported = false

func mmapCodeSegment(code []byte) ([]byte, error) {
	return nil, ErrUnsupportedPlatform
}

func munmapCodeSegment(code []byte) error {
	panic("BUG: munmapCodeSegment without mmapCodeSegment")
}
