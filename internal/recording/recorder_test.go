package recording

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/cyberscribe/internal/clip"
)

type fakeStream struct {
	chunks    chan []byte
	closeOnce sync.Once
	closes    atomic.Int32
	err       error
}

func newFakeStream() *fakeStream {
	return &fakeStream{chunks: make(chan []byte, 64)}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.chunks }
func (s *fakeStream) Err() error            { return s.err }

func (s *fakeStream) Close() error {
	s.closes.Add(1)
	s.closeOnce.Do(func() { close(s.chunks) })
	return nil
}

// endOnItsOwn simulates a device disappearing mid-capture.
func (s *fakeStream) endOnItsOwn(err error) {
	s.err = err
	s.closeOnce.Do(func() { close(s.chunks) })
}

type countingOpener struct {
	opens   atomic.Int32
	streams []*fakeStream
	mu      sync.Mutex
	err     error
}

func (o *countingOpener) open(context.Context) (Stream, error) {
	o.opens.Add(1)
	if o.err != nil {
		return nil, o.err
	}
	s := newFakeStream()
	o.mu.Lock()
	o.streams = append(o.streams, s)
	o.mu.Unlock()
	return s, nil
}

func (o *countingOpener) last() *fakeStream {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.streams[len(o.streams)-1]
}

func TestStartIsIdempotentWhileRecording(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)

	require.NoError(t, rec.Start(context.Background()))
	require.NoError(t, rec.Start(context.Background()))
	require.True(t, rec.Recording())
	require.Equal(t, int32(1), opener.opens.Load())

	_, _, err := rec.Stop()
	require.NoError(t, err)
}

func TestStopWhileIdleReturnsNoClipWithoutIO(t *testing.T) {
	dir := t.TempDir()
	opener := &countingOpener{}
	rec := New(opener.open, dir, 16000, nil)

	c, ok, err := rec.Stop()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, clip.Clip{}, c)
	require.Zero(t, opener.opens.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStopProducesClipAndClosesStream(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)
	require.NoError(t, rec.Start(context.Background()))

	stream := opener.last()
	for i := 0; i < 15; i++ {
		stream.chunks <- make([]byte, 2048)
	}
	stream.chunks <- make([]byte, 1280)

	c, ok, err := rec.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 16000, c.Frames)
	require.Equal(t, time.Second, c.Duration())
	require.Equal(t, int32(1), stream.closes.Load())
	require.False(t, rec.Recording())

	decoded, err := clip.Read(c.Path)
	require.NoError(t, err)
	require.Len(t, decoded.Samples, 16000)
	require.NoError(t, c.Remove())
}

func TestStopWithZeroFramesYieldsNoClip(t *testing.T) {
	dir := t.TempDir()
	opener := &countingOpener{}
	rec := New(opener.open, dir, 16000, nil)
	require.NoError(t, rec.Start(context.Background()))

	_, ok, err := rec.Stop()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, int32(1), opener.last().closes.Load())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestStartOpenFailureLeavesIdle(t *testing.T) {
	opener := &countingOpener{err: errors.New("no such device")}
	rec := New(opener.open, t.TempDir(), 16000, nil)

	err := rec.Start(context.Background())
	require.ErrorIs(t, err, ErrDevice)
	require.Contains(t, err.Error(), "no such device")
	require.False(t, rec.Recording())

	_, ok, err := rec.Stop()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStreamEndingOnItsOwnReportsFault(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)
	require.NoError(t, rec.Start(context.Background()))

	opener.last().endOnItsOwn(errors.New("server went away"))

	select {
	case err := <-rec.Faults():
		require.ErrorIs(t, err, ErrDevice)
		require.Contains(t, err.Error(), "server went away")
	case <-time.After(2 * time.Second):
		t.Fatal("expected fault")
	}

	rec.Abort()
	require.False(t, rec.Recording())
}

func TestStreamEndingWithoutCauseUsesSentinel(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)
	require.NoError(t, rec.Start(context.Background()))

	opener.last().endOnItsOwn(nil)

	select {
	case err := <-rec.Faults():
		require.ErrorIs(t, err, ErrStreamEnded)
	case <-time.After(2 * time.Second):
		t.Fatal("expected fault")
	}
}

func TestRequestedStopDoesNotReportFault(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)
	require.NoError(t, rec.Start(context.Background()))

	_, _, err := rec.Stop()
	require.NoError(t, err)

	select {
	case err := <-rec.Faults():
		t.Fatalf("unexpected fault: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseReleasesActiveStreamOnceAndRefusesStart(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)
	require.NoError(t, rec.Start(context.Background()))
	stream := opener.last()
	stream.chunks <- make([]byte, 64)

	rec.Close()
	rec.Close()
	require.Equal(t, int32(1), stream.closes.Load())

	err := rec.Start(context.Background())
	require.ErrorIs(t, err, ErrDevice)
	require.Equal(t, int32(1), opener.opens.Load())
}

func TestAlternatingSessionsUseFreshStreams(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, rec.Start(context.Background()))
		opener.last().chunks <- []byte{1, 0, 2, 0}
		c, ok, err := rec.Stop()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, 2, c.Frames)
	}
	require.Equal(t, int32(3), opener.opens.Load())
	for _, s := range opener.streams {
		require.Equal(t, int32(1), s.closes.Load())
	}
}

func TestStopDropsFaultRaisedBeforeStop(t *testing.T) {
	opener := &countingOpener{}
	rec := New(opener.open, t.TempDir(), 16000, nil)
	require.NoError(t, rec.Start(context.Background()))

	stream := opener.last()
	stream.chunks <- []byte{1, 0}
	stream.endOnItsOwn(errors.New("unplugged"))
	require.Eventually(t, func() bool { return len(rec.faults) == 1 }, 2*time.Second, 10*time.Millisecond)

	c, ok, err := rec.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, c.Frames)
	require.Empty(t, rec.faults)
}
