package indicator

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfreymuth/pulse"

	"github.com/rbright/cyberscribe/internal/config"
)

type cue int

const (
	cueStart cue = iota + 1
	cueStop
	cueComplete
	cueError
)

const (
	toneRate = 16000
	toneGap  = 22 * time.Millisecond
	toneRamp = 5 * time.Millisecond
)

type tone struct {
	hz     float64
	length time.Duration
	gain   float64
}

// Start and stop are the 600 Hz and 400 Hz 200 ms beeps; complete and error
// are short two-note phrases.
var cueTones = map[cue][]tone{
	cueStart:    {{hz: 600, length: 200 * time.Millisecond, gain: 0.2}},
	cueStop:     {{hz: 400, length: 200 * time.Millisecond, gain: 0.2}},
	cueComplete: {{hz: 740, length: 65 * time.Millisecond, gain: 0.16}, {hz: 988, length: 90 * time.Millisecond, gain: 0.16}},
	cueError:    {{hz: 480, length: 75 * time.Millisecond, gain: 0.18}, {hz: 360, length: 90 * time.Millisecond, gain: 0.18}},
}

var cuePCM = func() map[cue][]int16 {
	rendered := make(map[cue][]int16, len(cueTones))
	for c, tones := range cueTones {
		rendered[c] = render(tones)
	}
	return rendered
}()

// playCue prefers the user's sound file for c and falls back to the
// synthesized phrase.
func playCue(ctx context.Context, c cue, cfg config.IndicatorConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if path := cueFile(c, cfg); path != "" {
		if err := playFile(ctx, path); err == nil {
			return nil
		}
	}
	pcm := cuePCM[c]
	if len(pcm) == 0 {
		return nil
	}
	return playPCM(ctx, pcm)
}

func cueFile(c cue, cfg config.IndicatorConfig) string {
	files := map[cue]string{
		cueStart:    cfg.SoundStartFile,
		cueStop:     cfg.SoundStopFile,
		cueComplete: cfg.SoundCompleteFile,
		cueError:    cfg.SoundErrorFile,
	}
	return expandHome(files[c])
}

func expandHome(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw != "~" && !strings.HasPrefix(raw, "~/") {
		return raw
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return raw
	}
	return filepath.Join(home, strings.TrimPrefix(raw[1:], "/"))
}

func playFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := exec.CommandContext(ctx, "pw-play", "--media-role", "Notification", path).Run(); err != nil {
		return fmt.Errorf("pw-play %s: %w", path, err)
	}
	return nil
}

// playPCM streams mono samples to the default pulse sink and blocks until
// they drain.
func playPCM(ctx context.Context, pcm []int16) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("cyberscribe"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse: %w", err)
	}
	defer client.Close()

	remaining := pcm
	source := pulse.Int16Reader(func(buf []int16) (int, error) {
		if ctx.Err() != nil || len(remaining) == 0 {
			return 0, pulse.EndOfData
		}
		n := copy(buf, remaining)
		remaining = remaining[n:]
		if len(remaining) == 0 {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(source,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(toneRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("cyberscribe cue"),
	)
	if err != nil {
		return fmt.Errorf("open pulse playback: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	return stream.Error()
}

// render concatenates tones with a short silence between them.
func render(tones []tone) []int16 {
	var pcm []int16
	for i, t := range tones {
		if i > 0 {
			pcm = append(pcm, make([]int16, sampleCount(toneGap))...)
		}
		pcm = append(pcm, sine(t)...)
	}
	return pcm
}

// sine renders t with a linear fade in and out of at most toneRamp.
func sine(t tone) []int16 {
	n := sampleCount(t.length)
	if n == 0 || t.hz <= 0 || t.gain <= 0 {
		return nil
	}
	ramp := max(min(n/10, sampleCount(toneRamp)), 1)

	out := make([]int16, n)
	for i := range out {
		envelope := min(1, float64(i)/float64(ramp), float64(n-1-i)/float64(ramp))
		phase := 2 * math.Pi * t.hz * float64(i) / toneRate
		out[i] = int16(math.Round(math.Sin(phase) * t.gain * envelope * math.MaxInt16))
	}
	return out
}

func sampleCount(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * toneRate))
}
