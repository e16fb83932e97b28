package jit64

import "github.com/go-logr/logr"

// Features are the translator switches, mirroring the per-group "JIT off" debug settings of the emulator.
type Features uint64

const (
	// FeatureJITOff makes every instruction fall back to the interpreter.
	FeatureJITOff Features = 1 << iota
	// FeatureFloatingPointOff makes the floating-point group fall back to the interpreter.
	FeatureFloatingPointOff
)

// Get returns true if the feature (or group of features) is enabled.
func (f Features) Get(feature Features) bool {
	return f&feature != 0
}

// Set assigns the value for the feature (or group of features).
func (f Features) Set(feature Features, val bool) Features {
	if val {
		return f | feature
	}
	return f &^ feature
}

// Options controls how a block is translated.
type Options struct {
	// Disabled are the translator groups that must fall back to the interpreter.
	Disabled Features
	// EnableFPRF means the guest expects the FPRF field of FPSCR to be maintained, which
	// translated fmul and fmadd do not do.
	EnableFPRF bool
	// AccurateFcmp means the guest expects fcmpu/fcmpo to update FPSCR, which translated compares do not do.
	AccurateFcmp bool
	// AccurateRecordFlags makes record forms (Rc=1) fall back instead of copying FPSCR into CR1 natively.
	AccurateRecordFlags bool
	// NoSSE3 restricts the emitted code to SSE2.
	NoSSE3 bool
	// Logger receives translator diagnostics. The zero value discards them.
	Logger logr.Logger
}

// DefaultOptions returns the Options used when nothing is configured.
func DefaultOptions() *Options {
	return &Options{AccurateRecordFlags: true, Logger: logr.Discard()}
}
