//go:build darwin || freebsd || linux

package jit64

import "golang.org/x/sys/unix"

const mmapSupported = true

// mmapCodeSegment copies the code into a new executable region and returns the byte slice of the region.
func mmapCodeSegment(code []byte) ([]byte, error) {
	if len(code) == 0 {
		panic("BUG: mmapCodeSegment with zero length")
	}
	mmapFunc, err := unix.Mmap(
		-1,
		0,
		len(code),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON,
	)
	if err != nil {
		return nil, err
	}
	copy(mmapFunc, code)
	return mmapFunc, nil
}

func munmapCodeSegment(code []byte) error {
	return unix.Munmap(code)
}
