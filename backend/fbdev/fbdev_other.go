//go:build !linux

package fbdev

import "github.com/BeatGlow/screen"

// Open is not supported on this platform.
func Open(_ *Config) (screen.Backend, error) {
	return nil, ErrNotSupported
}
