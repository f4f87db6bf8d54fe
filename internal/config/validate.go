// If you are AI: This file validates configuration values and returns descriptive errors.

package config

import (
	"fmt"
)

// Validate checks that all configuration values are within acceptable ranges.
// Returns an error describing the first validation failure found.
func (c *Config) Validate() error {
	// The TLS port sits below the base and the RTSP port above it; the
	// whole derived range must stay inside the valid port space (1-65535).
	if c.Port+PortOffsetHTTPS <= 0 || c.Port+PortOffsetRTSP > 65535 {
		return fmt.Errorf("port must be between %d and %d, got %d", 1-PortOffsetHTTPS, 65535-PortOffsetRTSP, c.Port)
	}

	switch c.EncryptionMode {
	case EncryptionDisabled, EncryptionOpportune, EncryptionMandatory:
	default:
		return fmt.Errorf("encryption_mode must be one of disabled, opportunistic, mandatory; got %q", c.EncryptionMode)
	}

	switch c.OriginAllowed {
	case OriginPCOnly, OriginLAN, OriginWAN:
	default:
		return fmt.Errorf("origin_web_ui_allowed must be one of pc, lan, wan; got %q", c.OriginAllowed)
	}

	switch c.HDROption {
	case HDROptionNone, HDROptionAutomatic:
	default:
		return fmt.Errorf("hdr_option must be one of none, automatic; got %q", c.HDROption)
	}

	if _, _, _, err := ParseMode(c.FallbackMode); err != nil {
		return fmt.Errorf("fallback_mode: %w", err)
	}

	if c.BitrateDecreaseFactor <= 0 || c.BitrateDecreaseFactor >= 1 {
		return fmt.Errorf("bitrate_decrease_factor must be in (0, 1), got %g", c.BitrateDecreaseFactor)
	}
	if c.BitrateIncreaseFactor <= 1 {
		return fmt.Errorf("bitrate_increase_factor must be greater than 1, got %g", c.BitrateIncreaseFactor)
	}
	if c.BitrateMinKbps <= 0 || c.BitrateMinKbps > c.BitrateMaxKbps {
		return fmt.Errorf("bitrate_min_kbps %d must be positive and not above bitrate_max_kbps %d", c.BitrateMinKbps, c.BitrateMaxKbps)
	}

	if c.ExitTimeoutSeconds < 0 {
		return fmt.Errorf("exit_timeout must be non-negative, got %d", c.ExitTimeoutSeconds)
	}
	return nil
}
