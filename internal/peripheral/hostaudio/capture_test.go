package hostaudio

import (
	"encoding/binary"
	"testing"
)

func TestToRaw(t *testing.T) {
	tests := []struct {
		in        int16
		fullScale uint16
		want      uint16
	}{
		{-32768, 4095, 0},
		{32767, 4095, 4095},
		{0, 65535, 32768},
		{-32768, 65535, 0},
		{32767, 65535, 65535},
	}

	for _, tt := range tests {
		if got := ToRaw(tt.in, tt.fullScale); got != tt.want {
			t.Errorf("ToRaw(%d, %d) = %d, want %d", tt.in, tt.fullScale, got, tt.want)
		}
	}
}

func pcm(samples ...int16) []byte {
	buf := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], uint16(s)) //nolint:gosec // Reinterpreting PCM bits
	}
	return buf
}

func TestWrite(t *testing.T) {
	c := &Capture{fullScale: 65535}

	if got := c.ReadRawSample(); got != 0 {
		t.Errorf("ReadRawSample() before capture = %d, want 0", got)
	}

	c.write(pcm(-32768, 0, 32767), 3)
	if got := c.ReadRawSample(); got != 65535 {
		t.Errorf("ReadRawSample() = %d, want newest 65535", got)
	}
	if got := c.ReadRawSample(); got != 65535 {
		t.Errorf("repeated ReadRawSample() = %d, want 65535", got)
	}
	if got := c.Received(); got != 3 {
		t.Errorf("Received() = %d, want 3", got)
	}
}

func TestReadRawSampleSkipsBacklog(t *testing.T) {
	c := &Capture{fullScale: 4095}

	// One second of silence at the capture rate, never read.
	c.write(pcm(make([]int16, DefaultSampleRate)...), DefaultSampleRate)
	c.write(pcm(32767), 1)

	if got := c.ReadRawSample(); got != 4095 {
		t.Errorf("ReadRawSample() after backlog = %d, want fresh 4095", got)
	}
}

func TestWriteShortBuffer(t *testing.T) {
	c := &Capture{fullScale: 65535}
	c.write(pcm(32767), 1)

	// frameCount larger than the buffer and an odd trailing byte.
	c.write(append(pcm(-32768), 0x7F), 4)
	if got := c.ReadRawSample(); got != 0 {
		t.Errorf("ReadRawSample() = %d, want 0", got)
	}
	c.write(nil, 0)
	if got := c.ReadRawSample(); got != 0 {
		t.Errorf("ReadRawSample() after empty write = %d, want 0", got)
	}
}
