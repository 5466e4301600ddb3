package serial

import (
	"bytes"
	"encoding/binary"
)

// Frame bytes of the bridge protocol: FE FE <cmd> <payload...> FD.
const (
	FramePreamble = 0xFE
	FrameEnd      = 0xFD
)

// Commands sent to the microcontroller.
const (
	CmdPixels  = 0x01 // n, then n RGB triples
	CmdClear   = 0x02
	CmdToneOn  = 0x03 // frequency Hz and duration ms, both uint16 big endian
	CmdToneOff = 0x04
)

// CmdSample is the command of the sample frames streamed by the microcontroller.
const CmdSample = 0x10

const sampleFrameLen = 6 // FE FE 10 hi lo FD

var samplePrefix = []byte{FramePreamble, FramePreamble, CmdSample}

// encodeFrame builds a host-to-device frame.
func encodeFrame(cmd byte, payload []byte) []byte {
	frame := make([]byte, 0, len(payload)+4)
	frame = append(frame, FramePreamble, FramePreamble, cmd)
	frame = append(frame, payload...)
	return append(frame, FrameEnd)
}

// decodeFrames extracts the sample values of all complete sample frames in
// buf. The returned rest holds an incomplete trailing frame, if any.
func decodeFrames(buf []byte) (samples []uint16, rest []byte) {
	for {
		i := bytes.Index(buf, samplePrefix)
		if i < 0 {
			return samples, trailingPreamble(buf)
		}
		if len(buf)-i < sampleFrameLen {
			return samples, buf[i:]
		}
		frame := buf[i : i+sampleFrameLen]
		if frame[sampleFrameLen-1] != FrameEnd {
			// Resync on the next preamble.
			buf = buf[i+1:]
			continue
		}
		samples = append(samples, binary.BigEndian.Uint16(frame[3:5]))
		buf = buf[i+sampleFrameLen:]
	}
}

// trailingPreamble keeps the end of buf when it could start a frame.
func trailingPreamble(buf []byte) []byte {
	n := 0
	for n < len(samplePrefix)-1 && n < len(buf) && buf[len(buf)-1-n] == FramePreamble {
		n++
	}
	if n == 0 {
		return nil
	}
	return buf[len(buf)-n:]
}
