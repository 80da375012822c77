// Package coreaudiotest provides an in-memory Host for exercising the tap
// and recorder lifecycles without real hardware.
package coreaudiotest

import (
	"bytes"
	"encoding/binary"
	"sync"

	"github.com/sparticleinc/mac-audio-capture/internal/coreaudio"
)

type propertyKey struct {
	Object   coreaudio.ObjectID
	Selector coreaudio.Selector
}

// Host is a fake coreaudio.Host. Zero value is usable; every create call
// succeeds and hands out fresh object identifiers. Tests inject failures by
// setting the *Status fields and inspect behavior through the counters and
// the ordered call log.
type Host struct {
	mu sync.Mutex

	properties map[propertyKey][]byte
	nextID     coreaudio.ObjectID

	// Failure injection. Zero means success.
	CreateTapStatus        coreaudio.OSStatus
	CreateAggregateStatus  coreaudio.OSStatus
	CreateIOProcStatus     coreaudio.OSStatus
	StartStatus            coreaudio.OSStatus
	StopStatus             coreaudio.OSStatus
	DestroyIOProcStatus    coreaudio.OSStatus
	DestroyAggregateStatus coreaudio.OSStatus
	DestroyTapStatus       coreaudio.OSStatus

	// Counters.
	TapsCreated         int
	TapsDestroyed       int
	AggregatesCreated   int
	AggregatesDestroyed int
	IOProcsCreated      int
	IOProcsDestroyed    int
	DevicesStarted      int
	DevicesStopped      int

	// Calls records lifecycle calls in order, e.g. "StopDevice".
	Calls []string

	// LastTapDescription and LastAggregateDescription capture the most
	// recent create requests.
	LastTapDescription       coreaudio.TapDescription
	LastAggregateDescription coreaudio.AggregateDescription

	ioProc           coreaudio.IOProc
	aliveFns         map[coreaudio.ObjectID]func()
	defaultTapFormat []byte
}

func (h *Host) init() {
	if h.properties == nil {
		h.properties = map[propertyKey][]byte{}
	}
	if h.aliveFns == nil {
		h.aliveFns = map[coreaudio.ObjectID]func(){}
	}
	if h.nextID == 0 {
		h.nextID = 100
	}
}

func (h *Host) allocID() coreaudio.ObjectID {
	id := h.nextID
	h.nextID++
	return id
}

// SetProperty installs raw property bytes for one object/selector pair.
func (h *Host) SetProperty(obj coreaudio.ObjectID, sel coreaudio.Selector, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.properties[propertyKey{Object: obj, Selector: sel}] = data
}

// SetStreamFormat installs an encoded stream description on an object.
func (h *Host) SetStreamFormat(obj coreaudio.ObjectID, desc coreaudio.StreamDescription) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, desc)
	h.SetProperty(obj, coreaudio.SelectorTapStreamFormat, buf.Bytes())
}

// InstallDefaultTapFormat makes every future tap report the given format.
// The fake applies it to the tap object at creation time.
func (h *Host) InstallDefaultTapFormat(desc coreaudio.StreamDescription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, desc)
	h.defaultTapFormat = buf.Bytes()
}

func (h *Host) PropertyData(obj coreaudio.ObjectID, addr coreaudio.PropertyAddress, qualifier []byte) ([]byte, coreaudio.OSStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	data, ok := h.properties[propertyKey{Object: obj, Selector: addr.Selector}]
	if !ok {
		return nil, kAudioHardwareUnknownPropertyError
	}
	return data, 0
}

func (h *Host) SetPropertyData(obj coreaudio.ObjectID, addr coreaudio.PropertyAddress, data []byte) coreaudio.OSStatus {
	h.SetProperty(obj, addr.Selector, data)
	return 0
}

func (h *Host) CreateProcessTap(desc coreaudio.TapDescription) (coreaudio.ObjectID, coreaudio.OSStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "CreateProcessTap")
	if !h.CreateTapStatus.OK() {
		return coreaudio.UnknownObjectID, h.CreateTapStatus
	}
	h.TapsCreated++
	h.LastTapDescription = desc
	tap := h.allocID()
	if h.defaultTapFormat != nil {
		h.properties[propertyKey{Object: tap, Selector: coreaudio.SelectorTapStreamFormat}] = h.defaultTapFormat
	}
	h.properties[propertyKey{Object: tap, Selector: coreaudio.SelectorTapUID}] = []byte("tap-uid-fake")
	return tap, 0
}

func (h *Host) DestroyProcessTap(tap coreaudio.ObjectID) coreaudio.OSStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "DestroyProcessTap")
	if !h.DestroyTapStatus.OK() {
		return h.DestroyTapStatus
	}
	h.TapsDestroyed++
	return 0
}

func (h *Host) CreateAggregateDevice(desc coreaudio.AggregateDescription) (coreaudio.ObjectID, coreaudio.OSStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "CreateAggregateDevice")
	if !h.CreateAggregateStatus.OK() {
		return coreaudio.UnknownObjectID, h.CreateAggregateStatus
	}
	h.AggregatesCreated++
	h.LastAggregateDescription = desc
	return h.allocID(), 0
}

func (h *Host) DestroyAggregateDevice(device coreaudio.ObjectID) coreaudio.OSStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "DestroyAggregateDevice")
	if !h.DestroyAggregateStatus.OK() {
		return h.DestroyAggregateStatus
	}
	h.AggregatesDestroyed++
	return 0
}

func (h *Host) CreateIOProc(device coreaudio.ObjectID, proc coreaudio.IOProc) (coreaudio.IOProcID, coreaudio.OSStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "CreateIOProc")
	if !h.CreateIOProcStatus.OK() {
		return 0, h.CreateIOProcStatus
	}
	h.IOProcsCreated++
	h.ioProc = proc
	return coreaudio.IOProcID(h.IOProcsCreated), 0
}

func (h *Host) DestroyIOProc(device coreaudio.ObjectID, id coreaudio.IOProcID) coreaudio.OSStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "DestroyIOProc")
	if !h.DestroyIOProcStatus.OK() {
		return h.DestroyIOProcStatus
	}
	h.IOProcsDestroyed++
	h.ioProc = nil
	return 0
}

func (h *Host) StartDevice(device coreaudio.ObjectID, id coreaudio.IOProcID) coreaudio.OSStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "StartDevice")
	if !h.StartStatus.OK() {
		return h.StartStatus
	}
	h.DevicesStarted++
	return 0
}

func (h *Host) StopDevice(device coreaudio.ObjectID, id coreaudio.IOProcID) coreaudio.OSStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.Calls = append(h.Calls, "StopDevice")
	if !h.StopStatus.OK() {
		return h.StopStatus
	}
	h.DevicesStopped++
	return 0
}

func (h *Host) AddDeviceAliveListener(device coreaudio.ObjectID, fn func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	h.aliveFns[device] = fn
	return nil
}

func (h *Host) RemoveDeviceAliveListener(device coreaudio.ObjectID) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.init()
	delete(h.aliveFns, device)
	return nil
}

// InvokeIOProc drives the registered real-time callback once with the given
// input bytes, simulating one hardware buffer.
func (h *Host) InvokeIOProc(input []byte, channels uint32) {
	h.mu.Lock()
	proc := h.ioProc
	h.mu.Unlock()
	if proc == nil {
		return
	}
	in := coreaudio.BufferList{{Channels: channels, Data: input}}
	proc(coreaudio.Timestamp{}, in, coreaudio.Timestamp{}, nil, coreaudio.Timestamp{})
}

// TriggerDeviceGone fires the alive listener of every registered device,
// simulating out-of-band teardown.
func (h *Host) TriggerDeviceGone() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.aliveFns))
	for _, fn := range h.aliveFns {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// HasIOProc reports whether a callback is currently registered.
func (h *Host) HasIOProc() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ioProc != nil
}

const kAudioHardwareUnknownPropertyError coreaudio.OSStatus = 0x77686F3F // 'who?'
