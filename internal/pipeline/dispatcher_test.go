package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rbright/cyberscribe/internal/clip"
	"github.com/rbright/cyberscribe/internal/engine"
	"github.com/stretchr/testify/require"
)

type scriptedEngine struct {
	mu    sync.Mutex
	texts map[string]string
	errs  map[string]error
	delay map[string]time.Duration
}

func (e *scriptedEngine) Transcribe(ctx context.Context, audioPath string) (string, error) {
	name := strings.TrimSuffix(filepath.Base(audioPath), ".wav")
	e.mu.Lock()
	delay := e.delay[name]
	text := e.texts[name]
	err := e.errs[name]
	e.mu.Unlock()

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return text, err
}

type recordingSink struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (s *recordingSink) Deliver(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return s.err
}

func (s *recordingSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func writeClip(t *testing.T, dir string, name string) clip.Clip {
	t.Helper()
	c, err := clip.Write(dir, make([]byte, 3200), 16000)
	require.NoError(t, err)
	renamed := filepath.Join(dir, name+".wav")
	require.NoError(t, os.Rename(c.Path, renamed))
	c.Path = renamed
	return c
}

func collect(t *testing.T, d *Dispatcher, n int) []Result {
	t.Helper()
	results := make([]Result, 0, n)
	for len(results) < n {
		select {
		case r := <-d.Results():
			results = append(results, r)
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out after %d of %d results", len(results), n)
		}
	}
	return results
}

func TestDispatcherDeliversInSubmissionOrder(t *testing.T) {
	dir := t.TempDir()
	eng := &scriptedEngine{
		texts: map[string]string{"first": "premier", "second": "second"},
		delay: map[string]time.Duration{"first": 150 * time.Millisecond},
	}
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{}, nil)

	d.Submit(context.Background(), eng, writeClip(t, dir, "first"))
	d.Submit(context.Background(), eng, writeClip(t, dir, "second"))

	results := collect(t, d, 2)
	require.Equal(t, uint64(1), results[0].Seq)
	require.Equal(t, uint64(2), results[1].Seq)
	require.Equal(t, []string{"premier", "second"}, sink.delivered())
}

func TestDispatcherRemovesClipAfterDelivery(t *testing.T) {
	dir := t.TempDir()
	c := writeClip(t, dir, "only")
	d := NewDispatcher(&recordingSink{}, Options{}, nil)

	d.Submit(context.Background(), &scriptedEngine{texts: map[string]string{"only": "texte"}}, c)
	collect(t, d, 1)

	_, err := os.Stat(c.Path)
	require.True(t, os.IsNotExist(err))
}

func TestDispatcherPastesErrorDescription(t *testing.T) {
	dir := t.TempDir()
	eng := &scriptedEngine{errs: map[string]error{"busy": engine.ErrNotReady}}
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{}, nil)

	d.Submit(context.Background(), eng, writeClip(t, dir, "busy"))
	result := collect(t, d, 1)[0]

	require.ErrorIs(t, result.Err, engine.ErrNotReady)
	require.Equal(t, []string{"Error: speech model is still loading..."}, sink.delivered())
}

func TestDispatcherSkipsEmptyText(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{TrailingSpace: true}, nil)

	d.Submit(context.Background(), &scriptedEngine{}, writeClip(t, dir, "silence"))
	result := collect(t, d, 1)[0]

	require.NoError(t, result.Err)
	require.Empty(t, result.Text)
	require.Empty(t, sink.delivered())
}

func TestDispatcherAppliesTrailingSpace(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{}, nil)
	d.Apply(Options{TrailingSpace: true})

	d.Submit(context.Background(), &scriptedEngine{texts: map[string]string{"a": "salut"}}, writeClip(t, dir, "a"))
	collect(t, d, 1)

	require.Equal(t, []string{"salut "}, sink.delivered())
}

func TestDispatcherReportsDeliverFailure(t *testing.T) {
	dir := t.TempDir()
	sink := &recordingSink{err: errors.New("no clipboard")}
	d := NewDispatcher(sink, Options{}, nil)

	d.Submit(context.Background(), &scriptedEngine{texts: map[string]string{"a": "salut"}}, writeClip(t, dir, "a"))
	result := collect(t, d, 1)[0]

	require.EqualError(t, result.DeliverErr, "no clipboard")
	require.Equal(t, "salut", result.Text)
}

func TestDispatcherWaitDrainsPendingResults(t *testing.T) {
	dir := t.TempDir()
	eng := &scriptedEngine{
		texts: map[string]string{"a": "un", "b": "deux"},
		delay: map[string]time.Duration{"a": 50 * time.Millisecond},
	}
	d := NewDispatcher(&recordingSink{}, Options{}, nil)
	d.Submit(context.Background(), eng, writeClip(t, dir, "a"))
	d.Submit(context.Background(), eng, writeClip(t, dir, "b"))

	var drained []uint64
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx, func(r Result) { drained = append(drained, r.Seq) }))
	require.Equal(t, []uint64{1, 2}, drained)
}

func TestDispatcherWaitHonorsContext(t *testing.T) {
	dir := t.TempDir()
	eng := &scriptedEngine{
		texts: map[string]string{"slow": "lent"},
		delay: map[string]time.Duration{"slow": 5 * time.Second},
	}
	jobCtx, stopJobs := context.WithCancel(context.Background())
	d := NewDispatcher(&recordingSink{}, Options{}, nil)
	d.Submit(jobCtx, eng, writeClip(t, dir, "slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, d.Wait(ctx, nil), context.DeadlineExceeded)

	stopJobs()
	require.NoError(t, d.Wait(context.Background(), nil))
}

func TestDispatcherDumpsAudioWhenEnabled(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)

	dir := t.TempDir()
	d := NewDispatcher(&recordingSink{}, Options{EnableAudioDump: true}, nil)
	d.Submit(context.Background(), &scriptedEngine{}, writeClip(t, dir, "dump"))
	collect(t, d, 1)

	matches, err := filepath.Glob(filepath.Join(xdgStateHome, "cyberscribe", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	decoded, err := clip.Read(matches[0])
	require.NoError(t, err)
	require.Equal(t, 16000, decoded.SampleRate)
}

func TestDispatcherSkipsAudioDumpWhenDisabled(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)

	dir := t.TempDir()
	d := NewDispatcher(&recordingSink{}, Options{}, nil)
	d.Submit(context.Background(), &scriptedEngine{}, writeClip(t, dir, "dump"))
	collect(t, d, 1)

	matches, err := filepath.Glob(filepath.Join(xdgStateHome, "cyberscribe", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestResolveStateDirUsesXDGStateHome(t *testing.T) {
	xdgStateHome := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("HOME", t.TempDir())

	dir, err := resolveStateDir()
	require.NoError(t, err)
	require.Equal(t, xdgStateHome, dir)
}

func TestResolveStateDirFallsBackToHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", home)

	dir, err := resolveStateDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, ".local", "state"), dir)
}

func TestCreateDebugFileCreatesExpectedPath(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	file, err := createDebugFile("audio", "wav")
	require.NoError(t, err)
	path := file.Name()
	require.NoError(t, file.Close())

	require.FileExists(t, path)
	require.Contains(t, path, string(filepath.Separator)+"cyberscribe"+string(filepath.Separator)+"debug"+string(filepath.Separator))
	require.Contains(t, filepath.Base(path), "audio-")
	require.Equal(t, ".wav", filepath.Ext(path))

	stat, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), stat.Mode().Perm())
}

func TestDispatcherKeepsDeliveringWithoutAReader(t *testing.T) {
	dir := t.TempDir()
	const clips = 24
	texts := make(map[string]string, clips)
	for i := range clips {
		texts[fmt.Sprintf("clip-%02d", i)] = fmt.Sprintf("texte %d", i)
	}
	sink := &recordingSink{}
	d := NewDispatcher(sink, Options{}, nil)
	eng := &scriptedEngine{texts: texts}
	for i := range clips {
		d.Submit(context.Background(), eng, writeClip(t, dir, fmt.Sprintf("clip-%02d", i)))
	}

	require.Eventually(t, func() bool {
		return len(sink.delivered()) == clips
	}, 3*time.Second, 5*time.Millisecond)
	require.Equal(t, "texte 23", sink.delivered()[clips-1])

	var seqs []uint64
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx, func(r Result) { seqs = append(seqs, r.Seq) }))
	require.Len(t, seqs, clips)
	require.Equal(t, uint64(1), seqs[0])
	require.Equal(t, uint64(clips), seqs[clips-1])
}
