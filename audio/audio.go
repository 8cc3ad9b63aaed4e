package audio

import (
	"errors"
	"strings"
)

// ErrNoDevice is returned when the platform reports no capture device.
var ErrNoDevice = errors.New("no capture devices found")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"sennheiser momentum", "plantronics", "soundcore",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name. Headset profiles drop capture
// to 8-16 kHz narrowband, which hurts transcription.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// DataCallback receives interleaved S16LE PCM. The slice is only valid for
// the duration of the call.
type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// FindDevice matches name case-insensitively against device names, preferring
// an exact match over a substring match. An empty name selects nothing.
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(name)
	var partial *DeviceInfo
	for i := range devices {
		got := strings.ToLower(devices[i].Name)
		if got == want {
			return &devices[i], nil
		}
		if partial == nil && strings.Contains(got, want) {
			partial = &devices[i]
		}
	}
	if partial == nil {
		return nil, errors.New("capture device " + name + " not found")
	}
	return partial, nil
}
