// If you are AI: This file defines the host configuration structure.
// The config file is line oriented "key = value" with explicit defaults.

package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Port offsets from the configured base port. The gamestream wire protocol
// fixes these relationships; only the base moves.
const (
	PortOffsetHTTPS = -5
	PortOffsetAdmin = +1
	PortOffsetRTSP  = +21
)

// Encryption modes for the RTSP control stream.
const (
	EncryptionDisabled  = "disabled"
	EncryptionOpportune = "opportunistic"
	EncryptionMandatory = "mandatory"
)

// HDR handling options for streamed displays.
const (
	HDROptionNone      = "none"
	HDROptionAutomatic = "automatic"
)

// Origin classes for the admin API.
const (
	OriginPCOnly = "pc"
	OriginLAN    = "lan"
	OriginWAN    = "wan"
)

// PrepCmd is a paired do/undo command run around app launches.
type PrepCmd struct {
	Do       string `json:"do"`
	Undo     string `json:"undo"`
	Elevated bool   `json:"elevated,omitempty"`
}

// Config holds the complete host configuration.
type Config struct {
	// Identity and naming.
	HostName string
	Port     int

	// File locations.
	FileState       string
	FileApps        string
	FileCredentials string
	CertFile        string
	KeyFile         string
	CoverPath       string

	// Pairing and security.
	EnablePairing  bool
	EncryptionMode string
	OriginAllowed  string

	// Streaming.
	FallbackMode        string
	HeadlessMode        bool
	LegacyOrdering      bool
	EnableInputOnlyMode bool
	HDROption           string
	AdapterName         string
	OutputName          string
	DoubleRefreshRate   bool

	// Launch behaviour.
	GlobalPrepCmds      []PrepCmd
	ServerCmds          map[string]string
	EnvvarCompatibility bool
	ExitTimeoutSeconds  int

	// Bitrate controller.
	BitrateDecreaseFactor float64
	BitrateIncreaseFactor float64
	BitrateMinKbps        int
	BitrateMaxKbps        int

	// Logging.
	LogLevel string
	LogPath  string

	// Flags set from the command line, never persisted.
	FreshState bool
	PinStdin   bool

	// Path remembers where the config was loaded from so the admin API
	// can write changes back.
	Path string `json:"-"`
}

// HTTPPort returns the plain gamestream listener port.
func (c *Config) HTTPPort() int {
	return c.Port
}

// HTTPSPort returns the mutual-TLS gamestream listener port.
func (c *Config) HTTPSPort() int {
	return c.Port + PortOffsetHTTPS
}

// AdminPort returns the admin API listener port.
func (c *Config) AdminPort() int {
	return c.Port + PortOffsetAdmin
}

// RTSPPort returns the RTSP setup port handed to clients in sessionUrl0.
func (c *Config) RTSPPort() int {
	return c.Port + PortOffsetRTSP
}

// Load reads configuration from a "key = value" file.
// A missing file is not an error: every key has a default.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := cfg.apply(data); err != nil {
		return nil, err
	}
	return cfg, nil
}

// apply parses key = value lines into cfg. Later keys win.
func (c *Config) apply(data []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return fmt.Errorf("config line %d: missing '='", lineno)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := c.Set(key, value); err != nil {
			return fmt.Errorf("config line %d: %w", lineno, err)
		}
	}
	return scanner.Err()
}

// Set assigns a single key. Unknown keys are ignored so configs written by
// newer versions still load.
func (c *Config) Set(key, value string) error {
	var err error
	switch key {
	case "sunshine_name", "host_name":
		c.HostName = value
	case "port":
		c.Port, err = strconv.Atoi(value)
	case "file_state":
		c.FileState = value
	case "file_apps":
		c.FileApps = value
	case "credentials_file":
		c.FileCredentials = value
	case "cert":
		c.CertFile = value
	case "pkey":
		c.KeyFile = value
	case "cover_path":
		c.CoverPath = value
	case "enable_pairing":
		c.EnablePairing = parseBool(value)
	case "encryption_mode":
		c.EncryptionMode = value
	case "origin_web_ui_allowed":
		c.OriginAllowed = value
	case "fallback_mode":
		c.FallbackMode = value
	case "headless_mode":
		c.HeadlessMode = parseBool(value)
	case "legacy_ordering":
		c.LegacyOrdering = parseBool(value)
	case "enable_input_only_mode":
		c.EnableInputOnlyMode = parseBool(value)
	case "hdr_option":
		c.HDROption = value
	case "adapter_name":
		c.AdapterName = value
	case "output_name":
		c.OutputName = value
	case "double_refreshrate":
		c.DoubleRefreshRate = parseBool(value)
	case "global_prep_cmd":
		// JSON array payload, matching the apps file shape for prep commands.
		err = json.Unmarshal([]byte(value), &c.GlobalPrepCmds)
	case "server_cmd":
		err = json.Unmarshal([]byte(value), &c.ServerCmds)
	case "envvar_compatibility_mode":
		c.EnvvarCompatibility = parseBool(value)
	case "exit_timeout":
		c.ExitTimeoutSeconds, err = strconv.Atoi(value)
	case "bitrate_decrease_factor":
		c.BitrateDecreaseFactor, err = strconv.ParseFloat(value, 64)
	case "bitrate_increase_factor":
		c.BitrateIncreaseFactor, err = strconv.ParseFloat(value, 64)
	case "bitrate_min_kbps":
		c.BitrateMinKbps, err = strconv.Atoi(value)
	case "bitrate_max_kbps":
		c.BitrateMaxKbps, err = strconv.Atoi(value)
	case "log_level", "min_log_level":
		c.LogLevel = value
	case "log_path":
		c.LogPath = value
	}
	if err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return nil
}

// setDefaults applies explicit default values to unset fields.
func (c *Config) setDefaults() {
	host, _ := os.Hostname()
	if host == "" {
		host = "Glint"
	}

	c.HostName = host
	c.Port = 47989
	c.FileState = "state.json"
	c.FileApps = "apps.json"
	c.FileCredentials = "credentials.json"
	c.CertFile = "glint.crt"
	c.KeyFile = "glint.key"
	c.CoverPath = "covers"
	c.EnablePairing = true
	c.EncryptionMode = EncryptionOpportune
	c.OriginAllowed = OriginLAN
	c.FallbackMode = "1920x1080x60"
	c.LegacyOrdering = true
	c.HDROption = HDROptionAutomatic
	c.EnvvarCompatibility = true
	c.ExitTimeoutSeconds = 5
	c.BitrateDecreaseFactor = 0.8
	c.BitrateIncreaseFactor = 1.2
	c.BitrateMinKbps = 500
	c.BitrateMaxKbps = 150000
	c.LogLevel = "info"
	c.LogPath = "glint.log"
}

