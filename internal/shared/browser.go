package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

var (
	getRuntime = func() string { return runtime.GOOS }
	startCmd   = func(c *exec.Cmd) error { return c.Start() }
)

// browserCommand returns the command that opens url on the given platform.
func browserCommand(goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenBrowser opens the default system browser to the authorization URL.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(getRuntime(), url)
	if err != nil {
		return err
	}

	if err := startCmd(cmd); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
