// Package serial drives the LED matrix, buzzer and microphone ADC of a
// microcontroller attached over a framed serial link.
package serial

import (
	"encoding/binary"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
	"github.com/oszuidwest/zwfm-soundguard/internal/util"
	"github.com/tarm/serial"
)

const (
	readTimeout   = 500 * time.Millisecond
	idlePoll      = 5 * time.Millisecond
	minRetryDelay = 10 * time.Millisecond
	maxRetryDelay = time.Second
)

// Port is the byte stream to the microcontroller.
type Port interface {
	io.ReadWriteCloser
}

// Bridge implements the pixel, tone and sample peripherals over one serial link.
// It is safe for concurrent use.
type Bridge struct {
	port  Port
	clock peripheral.Clock

	writeMu sync.Mutex
	pixMu   sync.Mutex
	pixels  []peripheral.RGB

	latest   atomic.Uint32
	received atomic.Uint64

	closed atomic.Bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Open opens the serial device and starts reading sample frames.
func Open(name string, baud, pixelCount int) (*Bridge, error) {
	cfg := &serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: readTimeout,
	}
	port, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, util.WrapError("open serial port "+name, err)
	}
	slog.Info("serial bridge opened", "port", name, "baud", baud, "pixels", pixelCount)
	return NewBridge(port, pixelCount, peripheral.SystemClock{}), nil
}

// NewBridge starts a bridge on an already open port.
func NewBridge(port Port, pixelCount int, clock peripheral.Clock) *Bridge {
	pixelCount = min(max(pixelCount, 0), 255)
	b := &Bridge{
		port:   port,
		clock:  clock,
		pixels: make([]peripheral.RGB, pixelCount),
		done:   make(chan struct{}),
	}
	b.wg.Add(1)
	go b.readLoop()
	return b
}

// SetPixel buffers a color. Out-of-range indices are ignored.
func (b *Bridge) SetPixel(index int, c peripheral.RGB) {
	b.pixMu.Lock()
	defer b.pixMu.Unlock()
	if index < 0 || index >= len(b.pixels) {
		return
	}
	b.pixels[index] = c
}

// Len returns the number of pixels.
func (b *Bridge) Len() int {
	return len(b.pixels)
}

// Flush sends the pixel buffer and waits for the LED reset gap.
func (b *Bridge) Flush() error {
	b.pixMu.Lock()
	payload := make([]byte, 0, 1+3*len(b.pixels))
	payload = append(payload, byte(len(b.pixels)))
	for _, c := range b.pixels {
		payload = append(payload, c.R, c.G, c.B)
	}
	b.pixMu.Unlock()

	err := b.send(CmdPixels, payload)
	b.clock.Sleep(peripheral.ResetGap)
	return err
}

// ClearAll switches every pixel off.
func (b *Bridge) ClearAll() error {
	b.pixMu.Lock()
	clear(b.pixels)
	b.pixMu.Unlock()

	err := b.send(CmdClear, nil)
	b.clock.Sleep(peripheral.ResetGap)
	return err
}

// PlayTone sounds freqHz for d and silences the buzzer before returning.
func (b *Bridge) PlayTone(freqHz uint, d time.Duration) error {
	payload := make([]byte, 4)
	binary.BigEndian.PutUint16(payload[0:2], uint16(min(freqHz, 0xFFFF)))           //nolint:gosec // Clamped
	binary.BigEndian.PutUint16(payload[2:4], uint16(min(d.Milliseconds(), 0xFFFF))) //nolint:gosec // Clamped
	onErr := b.send(CmdToneOn, payload)

	b.clock.Sleep(d)

	return errors.Join(onErr, b.Stop())
}

// Stop silences the buzzer.
func (b *Bridge) Stop() error {
	return b.send(CmdToneOff, nil)
}

// ReadRawSample returns the most recent sample received from the microcontroller.
// Consecutive reads return distinct samples only when they are spaced further
// apart than the device's frame period.
func (b *Bridge) ReadRawSample() uint16 {
	return uint16(b.latest.Load()) //nolint:gosec // Stored from a uint16
}

// Received returns the number of sample frames decoded so far.
func (b *Bridge) Received() uint64 {
	return b.received.Load()
}

// Close stops the reader and closes the port.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(b.done)
	err := b.port.Close()
	b.wg.Wait()
	return err
}

func (b *Bridge) send(cmd byte, payload []byte) error {
	if b.closed.Load() {
		return peripheral.ErrPortClosed
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if _, err := b.port.Write(encodeFrame(cmd, payload)); err != nil {
		return util.WrapError("write serial frame", err)
	}
	return nil
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()

	buf := make([]byte, 256)
	var pending []byte
	backoff := util.NewBackoff(minRetryDelay, maxRetryDelay)

	for {
		select {
		case <-b.done:
			return
		default:
		}

		n, err := b.port.Read(buf)
		if n > 0 {
			var samples []uint16
			samples, pending = decodeFrames(append(pending, buf[:n]...))
			if len(samples) > 0 {
				b.latest.Store(uint32(samples[len(samples)-1]))
				b.received.Add(uint64(len(samples)))
			}
			backoff.Reset()
		}

		switch {
		case err == nil || errors.Is(err, io.EOF):
			if n == 0 && !b.wait(idlePoll) {
				return
			}
		case b.closed.Load():
			return
		default:
			delay := backoff.Next()
			slog.Warn("serial read failed", "error", err, "retry_in", delay)
			if !b.wait(delay) {
				return
			}
		}
	}
}

// wait sleeps for d and reports false when the bridge was closed meanwhile.
func (b *Bridge) wait(d time.Duration) bool {
	select {
	case <-b.done:
		return false
	case <-time.After(d):
		return true
	}
}
