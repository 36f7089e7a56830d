package speech

import (
	"encoding/binary"
	"errors"
	"time"
)

const (
	WAVHeaderSize = 44

	pcmFormat     = 1
	monoChannels  = 1
	bitsPerSample = 16
	blockAlign    = monoChannels * bitsPerSample / 8
)

var ErrNotWAV = errors.New("not a canonical PCM wav stream")

// WAVHeader is the decoded canonical 44-byte header.
type WAVHeader struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	DataLength    uint32
}

// Duration is the playback length of the data chunk.
func (h WAVHeader) Duration() time.Duration {
	bytesPerSecond := uint64(h.SampleRate) * uint64(h.Channels) * uint64(h.BitsPerSample) / 8
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(uint64(h.DataLength) * uint64(time.Second) / bytesPerSecond)
}

// EncodeWAV prefixes 16-bit mono PCM with a canonical RIFF header.
func EncodeWAV(pcm []byte, sampleRate uint32) []byte {
	out := make([]byte, WAVHeaderSize+len(pcm))
	dataLen := uint32(len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], 36+dataLen)
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], pcmFormat)
	binary.LittleEndian.PutUint16(out[22:24], monoChannels)
	binary.LittleEndian.PutUint32(out[24:28], sampleRate)
	binary.LittleEndian.PutUint32(out[28:32], sampleRate*blockAlign)
	binary.LittleEndian.PutUint16(out[32:34], blockAlign)
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], dataLen)
	copy(out[WAVHeaderSize:], pcm)
	return out
}

// ParseWAVHeader reads back a header written by EncodeWAV.
func ParseWAVHeader(b []byte) (WAVHeader, error) {
	if len(b) < WAVHeaderSize ||
		string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" ||
		string(b[12:16]) != "fmt " || string(b[36:40]) != "data" ||
		binary.LittleEndian.Uint16(b[20:22]) != pcmFormat {
		return WAVHeader{}, ErrNotWAV
	}
	return WAVHeader{
		SampleRate:    binary.LittleEndian.Uint32(b[24:28]),
		Channels:      binary.LittleEndian.Uint16(b[22:24]),
		BitsPerSample: binary.LittleEndian.Uint16(b[34:36]),
		DataLength:    binary.LittleEndian.Uint32(b[40:44]),
	}, nil
}
