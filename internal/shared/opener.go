package shared

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

var getRuntime = func() string { return runtime.GOOS }

// playerCommand builds the command that hands path to an audio player.
//
// A non-empty player is split on whitespace and the path appended; otherwise the platform opener is used.
func playerCommand(player, path string) (*exec.Cmd, error) {
	if fields := strings.Fields(player); len(fields) > 0 {
		return exec.Command(fields[0], append(fields[1:], path)...), nil
	}

	switch rt := getRuntime(); rt {
	case "darwin":
		return exec.Command("open", path), nil
	case "linux":
		return exec.Command("xdg-open", path), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", rt)
	}
}

// OpenFile plays the file at path with the configured player, or the system default application.
//
// Supports macOS, Linux, and Windows platforms. The player process is not waited on.
func OpenFile(player, path string) error {
	cmd, err := playerCommand(player, path)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	go cmd.Wait()
	return nil
}
