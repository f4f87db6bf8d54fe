// If you are AI: This file parses display mode strings and small value forms.

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMode splits a "WxHxFPS" mode string. The FPS component accepts
// fractional rates and is returned in millihertz; rates below 1000 are
// assumed to be plain hertz and scaled up.
func ParseMode(mode string) (width, height, fpsMilli int, err error) {
	parts := strings.Split(mode, "x")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("mode %q is not WxHxFPS", mode)
	}

	width, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("mode width: %w", err)
	}
	height, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("mode height: %w", err)
	}

	fps, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("mode fps: %w", err)
	}
	if fps < 1000 {
		fps *= 1000
	}
	return width, height, int(fps), nil
}

// parseBool accepts the value spellings legacy configs used.
func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "on", "yes", "enabled", "1":
		return true
	}
	return false
}

// formatBool writes booleans the way the config file spells them.
func formatBool(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}

// formatFloat writes a float without trailing zeroes.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
