package coreaudio_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio/coreaudiotest"
)

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

func TestReadDefaultOutputDevice(t *testing.T) {
	host := &coreaudiotest.Host{}
	host.SetProperty(coreaudio.SystemObjectID, coreaudio.SelectorDefaultOutputDevice, encodeUint32(42))

	device, err := coreaudio.ReadDefaultOutputDevice(host, coreaudio.SystemObjectID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if device != 42 {
		t.Fatalf("expected device 42, got %d", device)
	}
}

func TestReadPropertyUnavailable(t *testing.T) {
	host := &coreaudiotest.Host{}

	_, err := coreaudio.ReadDefaultOutputDevice(host, coreaudio.SystemObjectID)
	if !errors.Is(err, coreaudio.ErrPropertyUnavailable) {
		t.Fatalf("expected ErrPropertyUnavailable, got %v", err)
	}
}

func TestRequireSystemObject(t *testing.T) {
	host := &coreaudiotest.Host{}

	if _, err := coreaudio.ReadProcessList(host, 42); !errors.Is(err, coreaudio.ErrNotSystemObject) {
		t.Fatalf("expected ErrNotSystemObject, got %v", err)
	}
	if _, err := coreaudio.ReadDefaultOutputDevice(host, 42); !errors.Is(err, coreaudio.ErrNotSystemObject) {
		t.Fatalf("expected ErrNotSystemObject, got %v", err)
	}
	if _, err := coreaudio.TranslatePID(host, 42, 123); !errors.Is(err, coreaudio.ErrNotSystemObject) {
		t.Fatalf("expected ErrNotSystemObject, got %v", err)
	}
}

func TestReadProcessList(t *testing.T) {
	host := &coreaudiotest.Host{}
	var buf bytes.Buffer
	for _, id := range []uint32{7, 8, 9} {
		buf.Write(encodeUint32(id))
	}
	host.SetProperty(coreaudio.SystemObjectID, coreaudio.SelectorProcessObjectList, buf.Bytes())

	list, err := coreaudio.ReadProcessList(host, coreaudio.SystemObjectID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []coreaudio.ObjectID{7, 8, 9}
	if len(list) != len(expected) {
		t.Fatalf("expected %d processes, got %d", len(expected), len(list))
	}
	for i := range expected {
		if list[i] != expected[i] {
			t.Fatalf("element %d: expected %d, got %d", i, expected[i], list[i])
		}
	}
}

func TestReadTapStreamFormat(t *testing.T) {
	host := &coreaudiotest.Host{}
	want := coreaudio.StreamDescription{
		SampleRate:       44100,
		FormatID:         coreaudio.FormatLinearPCM,
		FormatFlags:      coreaudio.FormatFlagIsFloat | coreaudio.FormatFlagIsPacked,
		BytesPerPacket:   8,
		FramesPerPacket:  1,
		BytesPerFrame:    8,
		ChannelsPerFrame: 2,
		BitsPerChannel:   32,
	}
	host.SetStreamFormat(55, want)

	got, err := coreaudio.ReadTapStreamFormat(host, 55)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
	if !got.IsFloat32PCM() {
		t.Fatal("expected format to be float32 linear PCM")
	}
}

func TestReadPropertyStringTrimsNul(t *testing.T) {
	host := &coreaudiotest.Host{}
	host.SetProperty(77, coreaudio.SelectorDeviceUID, []byte("BuiltInSpeakerDevice\x00"))

	uid, err := coreaudio.ReadDeviceUID(host, 77)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if uid != "BuiltInSpeakerDevice" {
		t.Fatalf("expected trimmed uid, got %q", uid)
	}
}

func TestObjectIDValidity(t *testing.T) {
	if coreaudio.UnknownObjectID.IsValid() {
		t.Fatal("unknown object id must be invalid")
	}
	if !coreaudio.SystemObjectID.IsValid() {
		t.Fatal("system object id must be valid")
	}
}
