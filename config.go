package ppcjit

import (
	"fmt"

	"github.com/docker/go-units"
	"github.com/go-logr/logr"
	"github.com/xyproto/env/v2"

	"github.com/ppcjit/ppcjit/internal/jit64"
)

// Environment variables read by NewConfigFromEnv.
const (
	// EnvJITOff disables translation entirely, e.g. "PPCJIT_OFF=1".
	EnvJITOff = "PPCJIT_OFF"
	// EnvFloatingPointOff disables the floating-point translators.
	EnvFloatingPointOff = "PPCJIT_FP_OFF"
	// EnvFPRF makes fmul and fmadd fall back so the interpreter maintains FPSCR[FPRF].
	EnvFPRF = "PPCJIT_FPRF"
	// EnvAccurateFcmp makes fcmpu and fcmpo fall back so the interpreter maintains FPSCR.
	EnvAccurateFcmp = "PPCJIT_ACCURATE_FCMP"
	// EnvRecordFormNative translates record forms (Rc=1) instead of falling back.
	EnvRecordFormNative = "PPCJIT_RC_NATIVE"
	// EnvNoSSE3 restricts translated code to SSE2.
	EnvNoSSE3 = "PPCJIT_NO_SSE3"
	// EnvCodeCache is the host code budget of the block cache, e.g. "32MiB".
	EnvCodeCache = "PPCJIT_CODE_CACHE"
)

// DefaultCodeCacheSize is the host code budget of the block cache when none is configured.
const DefaultCodeCacheSize = 32 * units.MiB

// Config controls translation and execution, with the default implementation as NewConfig.
type Config struct {
	disabled            jit64.Features
	enableFPRF          bool
	accurateFcmp        bool
	accurateRecordFlags bool
	noSSE3              bool
	logger              logr.Logger
	codeCacheSize       int64
}

// defaultConfig helps avoid copy/pasting the wrong defaults.
var defaultConfig = &Config{
	accurateRecordFlags: true,
	logger:              logr.Discard(),
	codeCacheSize:       DefaultCodeCacheSize,
}

// clone ensures all fields are copied even if nil.
func (c *Config) clone() *Config {
	return &Config{
		disabled:            c.disabled,
		enableFPRF:          c.enableFPRF,
		accurateFcmp:        c.accurateFcmp,
		accurateRecordFlags: c.accurateRecordFlags,
		noSSE3:              c.noSSE3,
		logger:              c.logger,
		codeCacheSize:       c.codeCacheSize,
	}
}

// NewConfig returns the default configuration: every translator enabled, record forms interpreted
// and SSE3 code.
func NewConfig() *Config {
	return defaultConfig.clone()
}

// NewConfigFromEnv returns NewConfig adjusted by the PPCJIT_* environment variables.
func NewConfigFromEnv() (*Config, error) {
	env.Load()
	ret := NewConfig().
		WithJITOff(env.Bool(EnvJITOff)).
		WithFloatingPointOff(env.Bool(EnvFloatingPointOff)).
		WithFPRF(env.Bool(EnvFPRF)).
		WithAccurateFcmp(env.Bool(EnvAccurateFcmp)).
		WithAccurateRecordFlags(!env.Bool(EnvRecordFormNative)).
		WithSSE3(!env.Bool(EnvNoSSE3))
	if s := env.Str(EnvCodeCache); s != "" {
		size, err := units.RAMInBytes(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvCodeCache, err)
		}
		ret = ret.WithCodeCacheSize(size)
	}
	return ret, nil
}

// WithJITOff makes every instruction run in the interpreter.
func (c *Config) WithJITOff(off bool) *Config {
	ret := c.clone()
	ret.disabled = ret.disabled.Set(jit64.FeatureJITOff, off)
	return ret
}

// WithFloatingPointOff makes the floating-point instructions run in the interpreter.
func (c *Config) WithFloatingPointOff(off bool) *Config {
	ret := c.clone()
	ret.disabled = ret.disabled.Set(jit64.FeatureFloatingPointOff, off)
	return ret
}

// WithFPRF tells whether the guest relies on FPSCR[FPRF]. Translated fmul and fmadd do not compute it,
// so they fall back when enabled. Defaults to false.
func (c *Config) WithFPRF(enabled bool) *Config {
	ret := c.clone()
	ret.enableFPRF = enabled
	return ret
}

// WithAccurateFcmp makes fcmpu and fcmpo fall back so FPSCR is updated. Defaults to false.
func (c *Config) WithAccurateFcmp(enabled bool) *Config {
	ret := c.clone()
	ret.accurateFcmp = enabled
	return ret
}

// WithAccurateRecordFlags makes record forms (Rc=1) fall back. When false, CR1 is copied from
// FPSCR by translated code, which does not update FPSCR first. Defaults to true.
func (c *Config) WithAccurateRecordFlags(enabled bool) *Config {
	ret := c.clone()
	ret.accurateRecordFlags = enabled
	return ret
}

// WithSSE3 tells whether the host supports SSE3. Defaults to true.
func (c *Config) WithSSE3(enabled bool) *Config {
	ret := c.clone()
	ret.noSSE3 = !enabled
	return ret
}

// WithLogger sets the destination of translator diagnostics. Defaults to logr.Discard.
func (c *Config) WithLogger(logger logr.Logger) *Config {
	ret := c.clone()
	ret.logger = logger
	return ret
}

// WithCodeCacheSize sets how many bytes of host code the Engine keeps before it drops every block.
// Zero means no limit. Defaults to DefaultCodeCacheSize.
func (c *Config) WithCodeCacheSize(bytes int64) *Config {
	ret := c.clone()
	ret.codeCacheSize = bytes
	return ret
}

// CodeCacheSize returns the value set by WithCodeCacheSize.
func (c *Config) CodeCacheSize() int64 {
	return c.codeCacheSize
}

// String implements fmt.Stringer.
func (c *Config) String() string {
	return fmt.Sprintf("jit off=%v fp off=%v fprf=%v accurate fcmp=%v accurate rc=%v sse3=%v code cache=%s",
		c.disabled.Get(jit64.FeatureJITOff), c.disabled.Get(jit64.FeatureFloatingPointOff), c.enableFPRF,
		c.accurateFcmp, c.accurateRecordFlags, !c.noSSE3, units.BytesSize(float64(c.codeCacheSize)))
}

func (c *Config) options() *jit64.Options {
	return &jit64.Options{
		Disabled:            c.disabled,
		EnableFPRF:          c.enableFPRF,
		AccurateFcmp:        c.accurateFcmp,
		AccurateRecordFlags: c.accurateRecordFlags,
		NoSSE3:              c.noSSE3,
		Logger:              c.logger,
	}
}
