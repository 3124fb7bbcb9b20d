package output

import (
	"context"
	"log/slog"
	"time"

	"github.com/rbright/cyberscribe/internal/config"
	"github.com/rbright/cyberscribe/internal/hypr"
)

const (
	pasteCmdTimeout  = 2 * time.Second
	hyprPasteTimeout = 1200 * time.Millisecond
	keystrokeTimeout = uinputWarmup + time.Second
)

// Route names the mechanism that sends the paste keystroke.
type Route string

const (
	RouteDisabled Route = "disabled"
	RouteCommand  Route = "paste_cmd"
	RouteHyprland Route = "hyprland"
	RouteUinput   Route = "uinput"
)

var focusRetry = hypr.Retry{Attempts: 5, Delay: 10 * time.Millisecond}

// PasteRoute picks the paste mechanism for cfg: a configured paste_cmd wins,
// then Hyprland's sendshortcut inside a Hyprland session, then a uinput
// virtual keyboard.
func PasteRoute(cfg config.Config) Route {
	switch {
	case !cfg.Paste.Enable:
		return RouteDisabled
	case len(cfg.PasteCmd.Argv) > 0:
		return RouteCommand
	case hypr.InSession():
		return RouteHyprland
	default:
		return RouteUinput
	}
}

// paste triggers the paste keystroke along PasteRoute(cfg).
func paste(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	switch PasteRoute(cfg) {
	case RouteDisabled:
		return nil
	case RouteCommand:
		ctx, cancel := context.WithTimeout(ctx, pasteCmdTimeout)
		defer cancel()
		return pipeTo(ctx, cfg.PasteCmd.Argv, "")
	case RouteHyprland:
		ctx, cancel := context.WithTimeout(ctx, hyprPasteTimeout)
		defer cancel()
		target, err := hypr.Paste(ctx, cfg.Paste.Shortcut, focusRetry)
		if err != nil {
			return err
		}
		logger.Debug("paste sent", "shortcut", cfg.Paste.Shortcut, "class", target.Class, "title", target.Title)
		return nil
	}

	combo, err := parseShortcut(cfg.Paste.Shortcut)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, keystrokeTimeout)
	defer cancel()
	if err := sendKeys(ctx, combo); err != nil {
		return err
	}
	logger.Debug("paste sent", "shortcut", combo.name, "route", string(RouteUinput))
	return nil
}
