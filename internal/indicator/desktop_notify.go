package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIface = "org.freedesktop.Notifications"
)

// callNotifications invokes a method on the session notification daemon via
// busctl and returns its reply line, for example "u 42".
func callNotifications(ctx context.Context, method, signature string, args ...string) (string, error) {
	argv := append([]string{"--user", "call", notifyDest, notifyPath, notifyIface, method, signature}, args...)
	out, err := exec.CommandContext(ctx, "busctl", argv...).CombinedOutput()
	reply := strings.TrimSpace(string(out))
	if err != nil {
		if reply == "" {
			return "", fmt.Errorf("busctl %s: %w", method, err)
		}
		return "", fmt.Errorf("busctl %s: %w: %s", method, err, reply)
	}
	return reply, nil
}

// desktopNotify posts summary, replacing replaceID when non-zero, and returns
// the ID the server assigned.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, timeoutMS int) (uint32, error) {
	reply, err := callNotifications(ctx, "Notify", "susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"", // icon
		summary,
		"", // body
		"0",
		"0",
		strconv.Itoa(timeoutMS),
	)
	if err != nil {
		return 0, err
	}
	return parseNotificationID(reply)
}

func parseNotificationID(reply string) (uint32, error) {
	kind, value, ok := strings.Cut(reply, " ")
	if !ok || kind != "u" {
		return 0, fmt.Errorf("unexpected Notify reply %q", reply)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse notification id %q: %w", value, err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	_, err := callNotifications(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10))
	return err
}
