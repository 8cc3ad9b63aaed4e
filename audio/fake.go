package audio

import (
	"errors"
	"sync"
)

const fakeBytesPerFrame = 2 // 16-bit mono

// FakeContext hands out FakeCaptures that tests drive with Push.
type FakeContext struct {
	DeviceList []DeviceInfo
	OpenErr    error
	StartErr   error

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext() *FakeContext {
	return &FakeContext{DeviceList: []DeviceInfo{{ID: "fake-0", Name: "Fake Mic"}}}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return f.DeviceList, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	c := &FakeCapture{device: device, config: config, startErr: f.StartErr}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

// Last returns the most recently opened capture, or nil.
func (f *FakeContext) Last() *FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return nil
	}
	return f.captures[len(f.captures)-1]
}

type FakeCapture struct {
	device   *DeviceInfo
	config   CaptureConfig
	startErr error

	mu      sync.Mutex
	cb      DataCallback
	running bool
	closed  bool
}

var errFakeClosed = errors.New("fake capture closed")

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errFakeClosed
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}

func (f *FakeCapture) Close() {
	f.mu.Lock()
	f.running = false
	f.closed = true
	f.mu.Unlock()
}

// Running reports whether the capture is started and not yet stopped.
func (f *FakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Push delivers pcm to the callback as the device thread would. Data pushed
// while stopped is dropped. The slice is reused afterwards, so consumers
// that keep it without copying will see it change.
func (f *FakeCapture) Push(pcm []byte) bool {
	f.mu.Lock()
	cb, running := f.cb, f.running
	f.mu.Unlock()
	if !running || cb == nil {
		return false
	}
	scratch := make([]byte, len(pcm))
	copy(scratch, pcm)
	cb(scratch, uint32(len(scratch)/fakeBytesPerFrame))
	for i := range scratch {
		scratch[i] = 0xAA
	}
	return true
}
