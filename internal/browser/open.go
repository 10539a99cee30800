// Package browser hands URLs to the operating system's default browser.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Open opens the URL in the user's default browser. Only web URLs are
// accepted; the OS openers would happily take file paths too.
func Open(url string) error {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("refusing to open non-web url %q", url)
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "linux":
		return exec.Command("xdg-open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}
