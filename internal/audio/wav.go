package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"notecast/internal/fileutil"
)

const (
	SampleRate     = 24000
	Channels       = 1
	BitsPerSample  = 16
	bytesPerSample = BitsPerSample / 8
	bytesPerSecond = SampleRate * Channels * bytesPerSample
	wavHeaderSize  = 44
)

// PCMDuration returns the playback length of n bytes of PCM in the package format.
func PCMDuration(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / bytesPerSecond
}

// PCMBytes returns the byte length of d worth of PCM, aligned to whole samples.
func PCMBytes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	n := int(d * bytesPerSecond / time.Second)
	return n - n%(bytesPerSample*Channels)
}

// WriteWAV writes a canonical RIFF/WAVE header followed by the PCM segments in order.
func WriteWAV(w io.Writer, segments ...[]byte) (time.Duration, error) {
	var total int
	for _, seg := range segments {
		total += len(seg)
	}
	if total == 0 {
		return 0, errors.New("wav: no audio data")
	}
	if total%(bytesPerSample*Channels) != 0 {
		return 0, fmt.Errorf("wav: %d bytes is not a whole number of samples", total)
	}
	if err := writeHeader(w, total); err != nil {
		return 0, err
	}
	for _, seg := range segments {
		if _, err := w.Write(seg); err != nil {
			return 0, fmt.Errorf("wav: write data: %w", err)
		}
	}
	return PCMDuration(total), nil
}

// WriteFile assembles the segments into a WAV file at path. The file appears
// only once fully written.
func WriteFile(path string, segments ...[]byte) (time.Duration, error) {
	var duration time.Duration
	err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		d, err := WriteWAV(w, segments...)
		duration = d
		return err
	})
	if err != nil {
		return 0, err
	}
	return duration, nil
}

func writeHeader(w io.Writer, dataSize int) error {
	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], Channels)
	binary.LittleEndian.PutUint32(header[24:28], SampleRate)
	binary.LittleEndian.PutUint32(header[28:32], bytesPerSecond)
	binary.LittleEndian.PutUint16(header[32:34], Channels*bytesPerSample)
	binary.LittleEndian.PutUint16(header[34:36], BitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("wav: write header: %w", err)
	}
	return nil
}

// StripWAVHeader returns the PCM payload of a WAV blob, or the input unchanged
// when it carries no RIFF header. Providers that ignore raw-PCM requests are
// tolerated this way.
func StripWAVHeader(data []byte) []byte {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return data
	}
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if id == "data" {
			end := body + size
			if end > len(data) || size == 0 {
				end = len(data)
			}
			return data[body:end]
		}
		offset = body + size + size%2
	}
	return nil
}
