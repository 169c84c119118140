package config

import "testing"

func TestNewAppliesDefaults(t *testing.T) {
	c := New(16)
	if c.Capacity != 16 || c.Alignment != DefaultAlignment || c.Compression != CompressionNone || c.UseBloom {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	c := New(16, WithAlignment(64), WithCompression(CompressionZstd), WithBloom(true))
	if c.Alignment != 64 || c.Compression != CompressionZstd || !c.UseBloom {
		t.Fatalf("options did not apply: %+v", c)
	}
}

func TestValidateRejectsZeroCapacity(t *testing.T) {
	c := New(0)
	if err := c.Validate(); err == nil {
		t.Fatal("expected zero capacity to fail validation")
	}
}
