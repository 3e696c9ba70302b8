package frame

import (
	"encoding/binary"
	"fmt"
)

// Encode produces the packet sequence the device sends for f. The first
// packet is always FirstPacketSize bytes; the rest are packetSize bytes,
// zero-padded past MaxEvents.
func Encode(f *Frame, packetSize int) ([][]byte, error) {
	if packetSize < 2 || packetSize%2 != 0 {
		return nil, fmt.Errorf("invalid packet size %d", packetSize)
	}

	words := packetSize / 2
	packets := make([][]byte, 0, 1+(MaxEvents-FirstChunkEvents+words-1)/words)

	first := make([]byte, FirstPacketSize)
	PutHeader(first, f.Header)
	encodeAmplitudes(first[HeaderSize:], f.Amplitudes[:FirstChunkEvents])
	packets = append(packets, first)

	for address := FirstChunkEvents; address < MaxEvents; address += words {
		packet := make([]byte, packetSize)
		end := min(address+words, MaxEvents)
		encodeAmplitudes(packet, f.Amplitudes[address:end])
		packets = append(packets, packet)
	}

	return packets, nil
}

// PutHeader writes h into the first HeaderSize bytes of b
func PutHeader(b []byte, h Header) {
	binary.BigEndian.PutUint32(b[0:4], h.Magic)
	binary.BigEndian.PutUint16(b[4:6], h.EventCount)
	binary.BigEndian.PutUint16(b[8:10], h.TimeIndex)
	binary.BigEndian.PutUint16(b[10:12], h.TempADC)
}

func encodeAmplitudes(dst []byte, src []uint16) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], v)
	}
}
