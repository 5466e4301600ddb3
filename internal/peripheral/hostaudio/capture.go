// Package hostaudio reads microphone samples from a host capture device.
package hostaudio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
)

// DefaultSampleRate is the capture rate in Hz.
const DefaultSampleRate = 8000

// ErrNoCaptureDevice is returned when the requested capture device does not exist.
var ErrNoCaptureDevice = errors.New("capture device not found")

// Device is an available capture device.
type Device struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

// Capture streams mono S16 audio from a host device and serves it as raw ADC
// readings scaled to fullScale.
type Capture struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	fullScale uint16
	name      string

	latest   atomic.Uint32
	received atomic.Uint64
}

// Open initializes capture from the first device whose name contains
// deviceName (case-insensitive), or the system default when deviceName is empty.
func Open(deviceName string, fullScale uint16) (*Capture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, util.WrapError("init audio context", err)
	}

	c := &Capture{
		ctx:       ctx,
		fullScale: fullScale,
		name:      "default",
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = DefaultSampleRate
	deviceConfig.Alsa.NoMMap = 1

	if deviceName != "" {
		info, err := findDevice(ctx, deviceName)
		if err != nil {
			c.freeContext()
			return nil, err
		}
		deviceConfig.Capture.DeviceID = info.ID.Pointer()
		c.name = info.Name()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, frameCount uint32) {
			c.write(input, frameCount)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		c.freeContext()
		return nil, util.WrapError("init capture device", err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		c.Close()
		return nil, util.WrapError("start capture device", err)
	}

	slog.Info("audio capture started", "device", c.name, "sample_rate", device.SampleRate())
	return c, nil
}

func findDevice(ctx *malgo.AllocatedContext, name string) (malgo.DeviceInfo, error) {
	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceInfo{}, util.WrapError("list capture devices", err)
	}
	want := strings.ToLower(name)
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), want) {
			return info, nil
		}
	}
	return malgo.DeviceInfo{}, fmt.Errorf("%w: %s", ErrNoCaptureDevice, name)
}

// write converts S16 frames and keeps the newest one. It runs on the audio thread.
func (c *Capture) write(input []byte, frameCount uint32) {
	n := min(int(frameCount)*2, len(input)) &^ 1
	if n == 0 {
		return
	}
	s := int16(binary.LittleEndian.Uint16(input[n-2:])) //nolint:gosec // Reinterpreting PCM bits
	c.latest.Store(uint32(ToRaw(s, c.fullScale)))
	c.received.Add(uint64(n / 2))
}

// ToRaw shifts a signed PCM sample to an unsigned reading in [0, fullScale],
// the way a biased microphone looks to an ADC.
func ToRaw(s int16, fullScale uint16) uint16 {
	return uint16((int64(s) + 32768) * int64(fullScale) / 65535) //nolint:gosec // Result is within [0, fullScale]
}

// ReadRawSample returns the most recent captured sample. Frames delivered
// between two reads are skipped, so readings never lag behind the device.
func (c *Capture) ReadRawSample() uint16 {
	return uint16(c.latest.Load()) //nolint:gosec // Stored from a uint16
}

// Received returns the number of frames captured so far.
func (c *Capture) Received() uint64 {
	return c.received.Load()
}

// Name returns the name of the capture device in use.
func (c *Capture) Name() string {
	return c.name
}

// Close stops capture and releases the audio context.
func (c *Capture) Close() error {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	c.freeContext()
	return nil
}

func (c *Capture) freeContext() {
	if c.ctx == nil {
		return
	}
	if err := c.ctx.Uninit(); err != nil {
		slog.Debug("audio context uninit failed", "error", err)
	}
	c.ctx.Free()
	c.ctx = nil
}

// ListCaptureDevices returns the capture devices known to the host audio backend.
func ListCaptureDevices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, util.WrapError("init audio context", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, util.WrapError("list capture devices", err)
	}
	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{Name: info.Name(), IsDefault: info.IsDefault != 0})
	}
	return devices, nil
}
