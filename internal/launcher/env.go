// If you are AI: This file builds the environment for launched app processes.
// Both legacy SUNSHINE_* and native APOLLO_* variable names are injected.

package launcher

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"glint/internal/apps"
	"glint/internal/config"
	"glint/internal/session"
)

// buildSessionEnv merges the process environment, the catalog env and the
// per-session stream variables.
func buildSessionEnv(cfg *config.Config, catalogEnv map[string]string,
	app apps.App, launch *session.LaunchSession, renderWidth, renderHeight, scale int) []string {

	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	for k, v := range catalogEnv {
		env[k] = v
	}

	fps := float64(launch.FPSMilli) / 1000.0
	fpsStr := fmt.Sprintf("%.3f", fps)
	legacyFPS := fpsStr
	if cfg.EnvvarCompatibility {
		// Older scripts expect a whole number here.
		legacyFPS = strconv.Itoa(int(math.Round(fps)))
	}

	set := func(suffix, value string) {
		env["SUNSHINE_"+suffix] = value
		env["APOLLO_"+suffix] = value
	}

	set("APP_ID", app.ID)
	set("APP_NAME", app.Name)
	env["APOLLO_APP_UUID"] = app.UUID
	env["APOLLO_CLIENT_UUID"] = launch.UniqueID
	env["APOLLO_CLIENT_NAME"] = launch.DeviceName

	set("CLIENT_WIDTH", strconv.Itoa(renderWidth))
	set("CLIENT_HEIGHT", strconv.Itoa(renderHeight))
	env["APOLLO_CLIENT_RENDER_WIDTH"] = strconv.Itoa(launch.Width)
	env["APOLLO_CLIENT_RENDER_HEIGHT"] = strconv.Itoa(launch.Height)
	env["APOLLO_CLIENT_SCALE_FACTOR"] = strconv.Itoa(scale)

	env["SUNSHINE_CLIENT_FPS"] = legacyFPS
	env["APOLLO_CLIENT_FPS"] = fpsStr

	set("CLIENT_HDR", boolStr(launch.EnableHDR))
	set("CLIENT_GCMAP", strconv.Itoa(launch.GCMap))
	set("CLIENT_HOST_AUDIO", boolStr(launch.HostAudio))
	set("CLIENT_ENABLE_SOPS", boolStr(launch.EnableSOPS))

	// The low 16 bits of surroundAudioInfo carry the channel count.
	switch launch.SurroundInfo & 0xFFFF {
	case 2:
		set("CLIENT_AUDIO_CONFIGURATION", "2.0")
	case 6:
		set("CLIENT_AUDIO_CONFIGURATION", "5.1")
	case 8:
		set("CLIENT_AUDIO_CONFIGURATION", "7.1")
	}
	set("CLIENT_AUDIO_SURROUND_PARAMS", launch.SurroundParams)

	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// boolStr writes booleans the way the env contract spells them.
func boolStr(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
