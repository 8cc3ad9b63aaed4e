package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsBluetooth(t *testing.T) {
	require.True(t, IsBluetooth("Bose QC45"))
	require.True(t, IsBluetooth("Headset (BT)"))
	require.False(t, IsBluetooth("MacBook Pro Microphone"))
}

func TestFindDevice(t *testing.T) {
	ctx := &FakeContext{DeviceList: []DeviceInfo{
		{ID: "a", Name: "USB Mic Pro"},
		{ID: "b", Name: "USB Mic"},
	}}

	got, err := FindDevice(ctx, "usb mic")
	require.NoError(t, err)
	require.Equal(t, "b", got.ID)

	got, err = FindDevice(ctx, "pro")
	require.NoError(t, err)
	require.Equal(t, "a", got.ID)

	got, err = FindDevice(ctx, "")
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = FindDevice(ctx, "webcam")
	require.Error(t, err)
}

func TestFakeCapturePushOnlyWhileRunning(t *testing.T) {
	ctx := NewFakeContext()
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	require.NoError(t, err)

	var got [][]byte
	dev.SetCallback(func(data []byte, frames uint32) {
		require.Equal(t, uint32(len(data)/2), frames)
		got = append(got, append([]byte(nil), data...))
	})

	fake := ctx.Last()
	require.False(t, fake.Push([]byte{1, 2}))

	require.NoError(t, dev.Start())
	require.True(t, fake.Push([]byte{1, 2, 3, 4}))
	dev.Stop()
	require.False(t, fake.Push([]byte{5, 6}))

	require.Equal(t, [][]byte{{1, 2, 3, 4}}, got)
}

func TestFakeContextOpenError(t *testing.T) {
	ctx := NewFakeContext()
	ctx.OpenErr = errors.New("busy")
	_, err := ctx.NewCapture(nil, CaptureConfig{})
	require.EqualError(t, err, "busy")
}
