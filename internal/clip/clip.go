// Package clip serializes captured PCM into WAV clips and reads them back.
package clip

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

const (
	filePrefix = "cyberscribe-"
	fileSuffix = ".wav"

	bitDepth  = 16
	channels  = 1
	formatPCM = 1
)

// ErrEmpty is returned when there are no complete frames to serialize.
var ErrEmpty = errors.New("clip has no audio frames")

// Clip is one finalized recording stored as a mono 16-bit PCM WAV file.
type Clip struct {
	Path       string
	Frames     int
	SampleRate int
}

// Duration reports the clip length derived from its frame count.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames) * time.Second / time.Duration(c.SampleRate)
}

// Remove deletes the backing file. A missing file is not an error.
func (c Clip) Remove() error {
	if c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Write stores little-endian s16 mono pcm as a WAV file under dir.
// A trailing odd byte is dropped.
func Write(dir string, pcm []byte, sampleRate int) (Clip, error) {
	frames := len(pcm) / 2
	if frames == 0 {
		return Clip{}, ErrEmpty
	}
	if sampleRate <= 0 {
		return Clip{}, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Clip{}, fmt.Errorf("create clip dir: %w", err)
	}

	path := filepath.Join(dir, filePrefix+uuid.NewString()+fileSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return Clip{}, fmt.Errorf("create clip file: %w", err)
	}

	samples := make([]int, frames)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, formatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Clip{}, fmt.Errorf("encode clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return Clip{}, fmt.Errorf("finalize clip: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return Clip{}, fmt.Errorf("close clip file: %w", err)
	}

	return Clip{Path: path, Frames: frames, SampleRate: sampleRate}, nil
}

// Decoded is the content of a WAV clip read back from disk.
type Decoded struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []int
}

// PCM re-encodes the decoded samples as little-endian s16 bytes.
func (d Decoded) PCM() []byte {
	out := make([]byte, len(d.Samples)*2)
	for i, sample := range d.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(sample)))
	}
	return out
}

// Read decodes a WAV clip from path.
func Read(path string) (Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return Decoded{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Decoded{}, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Decoded{}, fmt.Errorf("decode %s: %w", path, err)
	}

	return Decoded{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Samples:    buf.Data,
	}, nil
}

// CleanupStale removes clips left in dir by an earlier process that are older than maxAge.
func CleanupStale(dir string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			removed++
		}
	}
	return removed, nil
}
