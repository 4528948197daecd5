package capture

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/notemate/pkg/audio"
)

// Compile-time assertion that MalgoDevice satisfies Device.
var _ Device = (*MalgoDevice)(nil)

// MalgoDevice captures from the system default input device through
// miniaudio. A single miniaudio context is shared by all streams it opens.
type MalgoDevice struct {
	ctx *malgo.AllocatedContext
}

// NewMalgoDevice initialises a miniaudio context using the platform's
// default backend. The caller must call Close when done.
func NewMalgoDevice() (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		slog.Debug("miniaudio", "msg", strings.TrimSpace(msg))
	})
	if err != nil {
		return nil, fmt.Errorf("capture: init audio context: %w", err)
	}
	return &MalgoDevice{ctx: ctx}, nil
}

// Open implements Device.
func (d *MalgoDevice) Open(format audio.Format, onData func(samples []int16)) (Stream, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			if len(input) < 2 {
				return
			}
			onData(decodeS16(input))
		},
	}

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("capture: open input device (%s): %w", format, err)
	}
	return &malgoStream{dev: dev}, nil
}

// Close releases the miniaudio context.
func (d *MalgoDevice) Close() error {
	if d.ctx == nil {
		return nil
	}
	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx = nil
	return err
}

type malgoStream struct {
	dev *malgo.Device
}

func (s *malgoStream) Start() error {
	if err := s.dev.Start(); err != nil {
		return fmt.Errorf("capture: start input device: %w", err)
	}
	return nil
}

// Close uninitialises the device, which blocks until any running data
// callback has returned.
func (s *malgoStream) Close() error {
	s.dev.Uninit()
	return nil
}

// decodeS16 converts little-endian signed 16-bit PCM bytes into samples.
// A trailing odd byte is ignored.
func decodeS16(pcm []byte) []int16 {
	n := len(pcm) / 2
	out := make([]int16, n)
	for i := range n {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}
