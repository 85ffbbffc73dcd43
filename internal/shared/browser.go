package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// EnvBrowser overrides the platform launcher used by [OpenBrowser].
const EnvBrowser = "BROWSER"

var browserLaunchers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"freebsd": {"xdg-open"},
	"openbsd": {"xdg-open"},
	"windows": {"rundll32", "url.dll,FileProtocolHandler"},
}

// browserCommand resolves the argv that opens url on goos.
// A non-empty override is split on whitespace and wins over the platform table.
func browserCommand(goos, override, url string) ([]string, error) {
	if fields := strings.Fields(override); len(fields) > 0 {
		return append(fields, url), nil
	}
	launcher, ok := browserLaunchers[goos]
	if !ok {
		return nil, fmt.Errorf("%w: no browser launcher for %s, open %s manually", ErrNotFound, goos, url)
	}
	return append(append([]string(nil), launcher...), url), nil
}

// OpenBrowser starts the system browser on url without waiting for it to exit.
func OpenBrowser(url string) error {
	argv, err := browserCommand(runtime.GOOS, os.Getenv(EnvBrowser), url)
	if err != nil {
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser with %s: %w", argv[0], err)
	}
	go cmd.Wait()
	return nil
}
