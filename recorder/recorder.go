package recorder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"localnotes/audio"
	"localnotes/encoder"
	"localnotes/log"
)

var (
	ErrDevice       = errors.New("audio input unavailable")
	ErrNoAudio      = errors.New("no audio captured")
	ErrNotRecording = errors.New("not recording")
)

// Artifact is one drained interval written to disk. The caller removes it.
type Artifact struct {
	Path    string
	Samples int
}

func (a *Artifact) Duration() time.Duration {
	return encoder.Duration(a.Samples)
}

func (a *Artifact) Remove() error {
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type Options struct {
	Device *audio.DeviceInfo // nil selects the system default
	Format encoder.Format
	Dir    string // artifact directory, defaults to os.TempDir()
}

// Recorder owns one capture session at a time and the Buffer it feeds.
type Recorder struct {
	ctx  audio.Context
	opts Options
	buf  Buffer

	mu      sync.Mutex
	capture audio.CaptureDevice
	flushed bool
	seq     int
}

func New(ctx audio.Context, opts Options) *Recorder {
	if opts.Format == "" {
		opts.Format = encoder.FormatWAV
	}
	return &Recorder{ctx: ctx, opts: opts}
}

func (r *Recorder) DeviceName() string {
	if r.opts.Device != nil {
		return r.opts.Device.Name
	}
	return "system default"
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}

// Start opens a 16 kHz mono capture and begins buffering.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture != nil {
		return fmt.Errorf("%w: capture already active", ErrDevice)
	}
	if r.ctx == nil {
		return fmt.Errorf("%w: no audio backend", ErrDevice)
	}
	if r.opts.Device == nil {
		devices, err := r.ctx.Devices()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrDevice, err)
		}
		if len(devices) == 0 {
			return fmt.Errorf("%w: %w", ErrDevice, audio.ErrNoDevice)
		}
	}

	capture, err := r.ctx.NewCapture(r.opts.Device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}

	r.buf.Reset()
	r.flushed = false
	r.seq = 0
	capture.SetCallback(func(data []byte, _ uint32) {
		r.buf.Append(data)
	})
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("%w: %w", ErrDevice, err)
	}
	r.capture = capture
	log.Infof("capture started on %s", r.DeviceName())
	return nil
}

// Flush drains what was captured since the last drain without interrupting
// capture. It returns nil when there is nothing new or no session is active.
func (r *Recorder) Flush() (*Artifact, error) {
	r.mu.Lock()
	if r.capture == nil {
		r.mu.Unlock()
		return nil, nil
	}
	pcm := r.buf.Drain()
	if len(pcm) == 0 {
		r.mu.Unlock()
		return nil, nil
	}
	r.flushed = true
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	return r.materialize(pcm, seq)
}

// Stop ends the capture session and returns the tail. The tail may be empty
// when earlier flushes consumed everything; if nothing was ever captured Stop
// returns ErrNoAudio.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	capture := r.capture
	r.capture = nil
	r.mu.Unlock()
	if capture == nil {
		return nil, ErrNotRecording
	}

	capture.Stop()
	capture.ClearCallback()
	capture.Close()

	pcm := r.buf.Drain()

	r.mu.Lock()
	flushed := r.flushed
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	log.Infof("capture stopped, tail %d bytes", len(pcm))
	if len(pcm) == 0 && !flushed {
		return nil, ErrNoAudio
	}
	return r.materialize(pcm, seq)
}

func (r *Recorder) materialize(pcm []byte, seq int) (*Artifact, error) {
	dir := r.opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, fmt.Sprintf("localnotes-%03d-*.%s", seq, r.opts.Format))
	if err != nil {
		return nil, fmt.Errorf("creating artifact: %w", err)
	}
	path := f.Name()
	f.Close()

	n, err := encoder.WriteFile(path, r.opts.Format, pcm)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return &Artifact{Path: filepath.Clean(path), Samples: n}, nil
}
