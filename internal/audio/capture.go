package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Fixed capture format: mono signed 16-bit little-endian at 16 kHz.
const (
	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	ChunkFrames    = 1024
	chunkSizeBytes = ChunkFrames * Channels * BitsPerSample / 8
	chunkBacklog   = 128
)

// Capture is one running Pulse record stream. PCM arrives on Chunks in
// chunkSizeBytes slices; the final slice may be shorter.
type Capture struct {
	device Device
	client *pulse.Client
	stream *pulse.RecordStream

	chunks   chan []byte
	done     chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	frames  framer
	closing bool
	err     error
	writers sync.WaitGroup

	total atomic.Int64
}

func newCapture(device Device, backlog int) *Capture {
	return &Capture{
		device: device,
		chunks: make(chan []byte, backlog),
		done:   make(chan struct{}),
		frames: framer{size: chunkSizeBytes},
	}
}

// Open selects the configured input (with fallback) and starts capturing from it.
func Open(ctx context.Context, input string, fallback string) (*Capture, Selection, error) {
	selection, err := SelectDevice(ctx, input, fallback)
	if err != nil {
		return nil, Selection{}, err
	}
	capture, err := StartCapture(ctx, selection.Device)
	if err != nil {
		return nil, selection, err
	}
	return capture, selection, nil
}

// StartCapture records from device until Stop is called or ctx ends. A
// cancelled ctx is reported by Err.
func StartCapture(ctx context.Context, device Device) (*Capture, error) {
	client, err := newClient()
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	c := newCapture(device, chunkBacklog)
	c.client = client

	c.stream, err = client.NewRecord(
		pulse.NewWriter(pcmSink(c.accept), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("cyberscribe dictation"),
	)
	if err != nil {
		_ = c.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	c.stream.Start()

	stopWatch := context.AfterFunc(ctx, func() { c.fail(ctx.Err()) })
	go func() {
		<-c.done
		stopWatch()
	}()

	return c, nil
}

func (c *Capture) Device() Device { return c.device }

// Chunks is closed once the capture stops.
func (c *Capture) Chunks() <-chan []byte { return c.chunks }

// Err is nil after a requested Stop.
func (c *Capture) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// BytesCaptured counts bytes accepted from Pulse, including any partial tail.
func (c *Capture) BytesCaptured() int64 { return c.total.Load() }

// Stop ends the stream, sends any partial tail, then closes Chunks.
func (c *Capture) Stop() error {
	c.stopOnce.Do(c.shutdown)
	return nil
}

func (c *Capture) Close() error { return c.Stop() }

func (c *Capture) shutdown() {
	c.mu.Lock()
	c.closing = true
	close(c.done)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}
	c.writers.Wait()

	c.mu.Lock()
	tail := c.frames.flush()
	c.mu.Unlock()
	if len(tail) > 0 {
		select {
		case c.chunks <- tail:
		default:
		}
	}
	close(c.chunks)
}

func (c *Capture) fail(err error) {
	c.mu.Lock()
	if !c.closing && c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
	_ = c.Stop()
}

// accept is the Pulse write callback. Returning io.EOF tells the stream to stop.
func (c *Capture) accept(pcm []byte) (int, error) {
	if len(pcm) == 0 {
		return 0, nil
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return 0, io.EOF
	}
	c.writers.Add(1)
	ready := c.frames.push(pcm)
	c.mu.Unlock()
	defer c.writers.Done()

	c.total.Add(int64(len(pcm)))
	for _, chunk := range ready {
		select {
		case c.chunks <- chunk:
		case <-c.done:
			return 0, io.EOF
		}
	}
	return len(pcm), nil
}

// framer cuts a byte stream into size-byte frames and holds the remainder.
type framer struct {
	size int
	rest []byte
}

func (f *framer) push(p []byte) [][]byte {
	f.rest = append(f.rest, p...)
	n := len(f.rest) / f.size
	if n == 0 {
		return nil
	}
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = bytes.Clone(f.rest[i*f.size : (i+1)*f.size])
	}
	f.rest = bytes.Clone(f.rest[n*f.size:])
	return frames
}

func (f *framer) flush() []byte {
	rest := f.rest
	f.rest = nil
	return rest
}

type pcmSink func([]byte) (int, error)

func (f pcmSink) Write(b []byte) (int, error) { return f(b) }
