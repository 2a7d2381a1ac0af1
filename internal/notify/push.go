package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Push is one OS-level notification request.
type Push struct {
	Title              string
	Body               string
	Tag                string
	RequireInteraction bool
	Data               map[string]any
}

// Pusher raises OS-level notifications. Implementations are
// best-effort: missing permission or platform support is a skipped
// side effect, never an error surfaced to the pipeline.
type Pusher interface {
	Available() bool
	Show(ctx context.Context, p Push) error
}

// NopPusher is used where no OS channel exists (tests, headless).
type NopPusher struct{}

func (NopPusher) Available() bool                  { return false }
func (NopPusher) Show(context.Context, Push) error { return nil }

// DesktopPusher shells out to the platform notifier when one is
// installed. Availability is probed, never assumed.
type DesktopPusher struct {
	binary string
}

// NewDesktopPusher probes for a usable notifier binary.
func NewDesktopPusher() *DesktopPusher {
	var candidate string
	switch runtime.GOOS {
	case "linux":
		candidate = "notify-send"
	case "darwin":
		candidate = "osascript"
	case "windows":
		candidate = "powershell"
	default:
		return &DesktopPusher{}
	}

	if _, err := exec.LookPath(candidate); err != nil {
		slog.Debug("desktop notifier not available", "binary", candidate)
		return &DesktopPusher{}
	}
	return &DesktopPusher{binary: candidate}
}

// Available reports whether a notifier binary was found.
func (d *DesktopPusher) Available() bool { return d.binary != "" }

// Show raises one notification. Failures are logged and swallowed.
func (d *DesktopPusher) Show(ctx context.Context, p Push) error {
	if d.binary == "" {
		return nil
	}

	var cmd *exec.Cmd
	switch d.binary {
	case "notify-send":
		cmd = exec.CommandContext(ctx, d.binary, p.Title, p.Body)
	case "osascript":
		script := `display notification "` + p.Body + `" with title "` + p.Title + `"`
		cmd = exec.CommandContext(ctx, d.binary, "-e", script)
	case "powershell":
		script := fmt.Sprintf("New-BurntToastNotification -Text %q, %q", p.Title, p.Body)
		cmd = exec.CommandContext(ctx, d.binary, "-NoProfile", "-Command", script)
	default:
		return nil
	}

	if err := cmd.Run(); err != nil {
		slog.Debug("push notification failed", "err", err)
	}
	return nil
}
