// Package audio finds Pulse input sources and captures mono 16 kHz PCM from
// them.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

// Device is one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// problem describes why d cannot record, or returns "" when it can.
func (d Device) problem() string {
	switch {
	case !d.Available:
		return "unavailable"
	case d.Muted:
		return "muted"
	}
	return ""
}

// Selection is the device chosen for recording. Warning is set when the
// configured input could not be used.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices queries the Pulse server for every input source.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos proto.GetSourceInfoListReply
	if err := client.RawRequest(&proto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          info.SourceName,
			Description: info.Device,
			State:       sourceState(info.State),
			Available:   activePortAvailable(info),
			Muted:       info.Mute,
			Default:     info.SourceName == def.ID(),
		})
	}
	return devices, nil
}

// SelectDevice picks the source to record from. input and fallback are
// substrings of a device ID or description, or "default" (also the meaning
// of an empty value) for the server's default source.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return choose(devices, input, fallback)
}

func choose(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	primary, err := lookup(devices, input, "audio.input")
	if err != nil {
		return Selection{}, err
	}
	why := primary.problem()
	if why == "" {
		return Selection{Device: primary}, nil
	}

	alt, err := lookup(devices, fallback, "audio.fallback")
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input %q is %s: %w", primary.ID, why, err)
	}
	if altWhy := alt.problem(); altWhy != "" {
		return Selection{}, fmt.Errorf("audio.input %q is %s and fallback %q is %s", primary.ID, why, alt.ID, altWhy)
	}
	return Selection{
		Device:   alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; using %q", primary.ID, why, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

// lookup resolves one preference. key names the config field in errors.
func lookup(devices []Device, pref, key string) (Device, error) {
	pref = strings.ToLower(strings.TrimSpace(pref))
	if pref == "" || pref == "default" {
		for _, d := range devices {
			if d.Default {
				return d, nil
			}
		}
		return Device{}, errors.New("default audio source is unavailable")
	}
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.ID), pref) || strings.Contains(strings.ToLower(d.Description), pref) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%s %q did not match any device", key, pref)
}

func newClient() (*pulse.Client, error) {
	return pulse.NewClient(
		pulse.ClientApplicationName("cyberscribe"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
}

// sourceState names a pa_source_state value.
func sourceState(state uint32) string {
	names := [...]string{"running", "idle", "suspended"}
	if int(state) < len(names) {
		return names[state]
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// activePortAvailable treats a source without ports, or whose active port
// availability is unknown (0) or yes (2), as usable.
func activePortAvailable(info *proto.GetSourceInfoReply) bool {
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != 1
		}
	}
	return true
}
