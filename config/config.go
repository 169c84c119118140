// Package config holds the process-wide, read-only settings a CAB
// session needs. Spec treats block capacity and memory alignment as
// process-wide constants but forbids a package-level global: every
// session takes a *Config explicitly at construction time.
package config

import "fmt"

// CompressionKind selects how a CABLayouter encodes block content bytes.
type CompressionKind uint8

const (
	// CompressionNone stores block content uncompressed.
	CompressionNone CompressionKind = iota
	// CompressionZstd compresses block content with zstd.
	CompressionZstd
)

func (c CompressionKind) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("CompressionKind(%d)", uint8(c))
	}
}

// DefaultAlignment is the platform alignment used to pad Bloom filter
// payloads in the info file so each one starts on an aligned boundary.
const DefaultAlignment = 8

// Config is the explicit, immutable session configuration. One value is
// shared (by pointer, read-only) across a session's operator, writer,
// reader, or appender.
type Config struct {
	// Capacity is C, the number of records a full CAB may hold.
	Capacity uint64
	// Alignment is the byte alignment used for Bloom filter payloads.
	Alignment uint64
	// Compression selects the content-block codec.
	Compression CompressionKind
	// UseBloom enables the optional per-CAB Bloom filter.
	UseBloom bool
}

// Option mutates a Config being built by New. Mirrors the teacher's
// functional-option style (segmentmanager.DiskSegmentManagerOption).
type Option func(*Config)

// WithAlignment overrides the default memory alignment.
func WithAlignment(align uint64) Option {
	return func(c *Config) { c.Alignment = align }
}

// WithCompression selects the content-block compression kind.
func WithCompression(kind CompressionKind) Option {
	return func(c *Config) { c.Compression = kind }
}

// WithBloom enables the optional Bloom filter.
func WithBloom(enabled bool) Option {
	return func(c *Config) { c.UseBloom = enabled }
}

// New builds a Config for the given CAB capacity. Capacity zero is
// invalid; callers must check Validate before using the Config.
func New(capacity uint64, opts ...Option) *Config {
	c := &Config{
		Capacity:    capacity,
		Alignment:   DefaultAlignment,
		Compression: CompressionNone,
		UseBloom:    false,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports whether the Config can drive a session.
func (c *Config) Validate() error {
	if c.Capacity == 0 {
		return fmt.Errorf("config: capacity must be non-zero")
	}
	if c.Alignment == 0 {
		return fmt.Errorf("config: alignment must be non-zero")
	}
	return nil
}
