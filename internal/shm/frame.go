package shm

import "encoding/binary"

// frameHeaderSize is the on-wire size of a FrameHeader: a 4-byte
// payload length and a 4-byte flag word, matching the transport's
// 8-byte frame contract (no stream IDs or frame types — this ring
// carries one kind of payload: an opaque message).
const frameHeaderSize = 8

// FrameFlag bits live in the upper word of a frame header.
type FrameFlag uint32

const (
	// FlagWrap marks a sentinel frame whose payload is empty: it tells
	// a reader "ignore the rest of this cycle, the next real frame
	// starts at offset 0". The publisher writes one whenever a frame's
	// header fits before the end of the data region but the whole frame
	// does not; when fewer than frameHeaderSize bytes remain, publisher
	// and reader both wrap to offset 0 without a sentinel.
	FlagWrap FrameFlag = 1 << 0
)

// FrameHeader is the 8-byte header preceding every frame's payload.
type FrameHeader struct {
	Size  uint32
	Flags FrameFlag
}

func encodeFrameHeader(buf []byte, h FrameHeader) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Size)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(h.Flags))
}

func decodeFrameHeader(buf []byte) FrameHeader {
	return FrameHeader{
		Size:  binary.LittleEndian.Uint32(buf[0:4]),
		Flags: FrameFlag(binary.LittleEndian.Uint32(buf[4:8])),
	}
}

// alignUp8 rounds n up to the next multiple of 8 so every frame
// (header + payload) starts on an 8-byte boundary, keeping the packed
// cursor's offset arithmetic simple and keeping payload reads aligned
// for word-sized access.
func alignUp8(n uint32) uint32 {
	return (n + 7) &^ 7
}

// framedSize returns the total ring footprint of a payload of the
// given length: header, payload, and pad-to-8 trailer.
func framedSize(payloadLen uint32) uint32 {
	return frameHeaderSize + alignUp8(payloadLen)
}
