// If you are AI: This file writes the configuration back to disk.
// Only keys that differ from their defaults are persisted.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Save writes the non-default keys back in "key = value" form.
// The admin API's config POST lands here.
func (c *Config) Save(path string) error {
	defaults := &Config{}
	defaults.setDefaults()

	lines := map[string]string{}
	put := func(key, value, def string) {
		if value != def {
			lines[key] = value
		}
	}

	put("sunshine_name", c.HostName, defaults.HostName)
	put("port", strconv.Itoa(c.Port), strconv.Itoa(defaults.Port))
	put("file_state", c.FileState, defaults.FileState)
	put("file_apps", c.FileApps, defaults.FileApps)
	put("credentials_file", c.FileCredentials, defaults.FileCredentials)
	put("cert", c.CertFile, defaults.CertFile)
	put("pkey", c.KeyFile, defaults.KeyFile)
	put("cover_path", c.CoverPath, defaults.CoverPath)
	put("enable_pairing", formatBool(c.EnablePairing), formatBool(defaults.EnablePairing))
	put("encryption_mode", c.EncryptionMode, defaults.EncryptionMode)
	put("origin_web_ui_allowed", c.OriginAllowed, defaults.OriginAllowed)
	put("fallback_mode", c.FallbackMode, defaults.FallbackMode)
	put("headless_mode", formatBool(c.HeadlessMode), formatBool(defaults.HeadlessMode))
	put("legacy_ordering", formatBool(c.LegacyOrdering), formatBool(defaults.LegacyOrdering))
	put("enable_input_only_mode", formatBool(c.EnableInputOnlyMode), formatBool(defaults.EnableInputOnlyMode))
	put("hdr_option", c.HDROption, defaults.HDROption)
	put("adapter_name", c.AdapterName, defaults.AdapterName)
	put("output_name", c.OutputName, defaults.OutputName)
	put("double_refreshrate", formatBool(c.DoubleRefreshRate), formatBool(defaults.DoubleRefreshRate))
	put("envvar_compatibility_mode", formatBool(c.EnvvarCompatibility), formatBool(defaults.EnvvarCompatibility))
	put("exit_timeout", strconv.Itoa(c.ExitTimeoutSeconds), strconv.Itoa(defaults.ExitTimeoutSeconds))
	put("bitrate_decrease_factor", formatFloat(c.BitrateDecreaseFactor), formatFloat(defaults.BitrateDecreaseFactor))
	put("bitrate_increase_factor", formatFloat(c.BitrateIncreaseFactor), formatFloat(defaults.BitrateIncreaseFactor))
	put("bitrate_min_kbps", strconv.Itoa(c.BitrateMinKbps), strconv.Itoa(defaults.BitrateMinKbps))
	put("bitrate_max_kbps", strconv.Itoa(c.BitrateMaxKbps), strconv.Itoa(defaults.BitrateMaxKbps))
	put("min_log_level", c.LogLevel, defaults.LogLevel)
	put("log_path", c.LogPath, defaults.LogPath)

	if len(c.GlobalPrepCmds) > 0 {
		encoded, err := json.Marshal(c.GlobalPrepCmds)
		if err != nil {
			return fmt.Errorf("encode global_prep_cmd: %w", err)
		}
		lines["global_prep_cmd"] = string(encoded)
	}
	if len(c.ServerCmds) > 0 {
		encoded, err := json.Marshal(c.ServerCmds)
		if err != nil {
			return fmt.Errorf("encode server_cmd: %w", err)
		}
		lines["server_cmd"] = string(encoded)
	}

	keys := make([]string, 0, len(lines))
	for k := range lines {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s = %s\n", k, lines[k])
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

