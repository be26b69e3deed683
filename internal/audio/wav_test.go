package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPCMDurationRoundTrip(t *testing.T) {
	n := PCMBytes(1500 * time.Millisecond)
	if n != 72000 {
		t.Fatalf("unexpected byte count %d", n)
	}
	if got := PCMDuration(n); got != 1500*time.Millisecond {
		t.Fatalf("unexpected duration %s", got)
	}
}

func TestWriteWAVHeaderAndData(t *testing.T) {
	first := make([]byte, PCMBytes(time.Second))
	second := bytes.Repeat([]byte{1, 0}, 100)
	var buf bytes.Buffer
	duration, err := WriteWAV(&buf, first, second)
	if err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	data := buf.Bytes()
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("missing RIFF/WAVE magic")
	}
	dataSize := binary.LittleEndian.Uint32(data[40:44])
	if int(dataSize) != len(first)+len(second) {
		t.Fatalf("unexpected data size %d", dataSize)
	}
	if binary.LittleEndian.Uint32(data[24:28]) != SampleRate {
		t.Fatalf("unexpected sample rate")
	}
	if want := PCMDuration(len(first) + len(second)); duration != want {
		t.Fatalf("duration %s, want %s", duration, want)
	}
	if !bytes.Equal(StripWAVHeader(data), append(first, second...)) {
		t.Fatal("expected StripWAVHeader to return the PCM payload")
	}
}

func TestWriteWAVRejectsEmptyAndOddData(t *testing.T) {
	if _, err := WriteWAV(&bytes.Buffer{}); err == nil {
		t.Fatal("expected error for empty audio")
	}
	if _, err := WriteWAV(&bytes.Buffer{}, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for partial sample")
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episode.wav")
	if _, err := WriteFile(path, make([]byte, 480)); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 44+480 {
		t.Fatalf("unexpected file size %d", info.Size())
	}
}

func TestStripWAVHeaderPassesRawPCM(t *testing.T) {
	raw := []byte{1, 2, 3, 4}
	if !bytes.Equal(StripWAVHeader(raw), raw) {
		t.Fatal("expected raw PCM to pass through")
	}
}
