// Package coreaudio wraps the platform's property-based audio object
// interface. It is the only package that deals in raw property addresses;
// everything above it goes through the typed accessors.
package coreaudio

// ObjectID identifies an audio object (device, tap, process, or the system
// object itself). Zero is never a valid object.
type ObjectID uint32

// IsValid reports whether the identifier refers to an existing object.
func (id ObjectID) IsValid() bool {
	return id != UnknownObjectID
}

// OSStatus is the platform's four-byte result code. Zero means success.
type OSStatus int32

// OK reports whether the status indicates success.
func (s OSStatus) OK() bool {
	return s == 0
}

const (
	// UnknownObjectID is the invalid object identifier.
	UnknownObjectID ObjectID = 0
	// SystemObjectID is the root object carrying hardware-wide properties.
	SystemObjectID ObjectID = 1
)

// Selector, Scope and Element form a property address. Values are the
// platform's four-character codes.
type (
	Selector uint32
	Scope    uint32
	Element  uint32
)

// Property selectors used by this module.
const (
	SelectorDefaultOutputDevice  Selector = 0x644F7574 // 'dOut'
	SelectorProcessObjectList    Selector = 0x70727323 // 'prs#'
	SelectorTranslatePIDToObject Selector = 0x69643270 // 'id2p'
	SelectorDeviceUID            Selector = 0x75696420 // 'uid '
	SelectorDeviceIsAlive        Selector = 0x6C69766E // 'livn'
	SelectorTapUID               Selector = 0x74756964 // 'tuid'
	SelectorTapStreamFormat      Selector = 0x74666D74 // 'tfmt'
)

const (
	// ScopeGlobal addresses properties that are not scoped to a direction.
	ScopeGlobal Scope = 0x676C6F62 // 'glob'
	// ElementMain addresses the object as a whole.
	ElementMain Element = 0
)

// PropertyAddress names one property on one audio object.
type PropertyAddress struct {
	Selector Selector
	Scope    Scope
	Element  Element
}

// GlobalAddress is shorthand for a global/main property address.
func GlobalAddress(sel Selector) PropertyAddress {
	return PropertyAddress{Selector: sel, Scope: ScopeGlobal, Element: ElementMain}
}

// Linear PCM format identity and flags, as reported in StreamDescription.
const (
	FormatLinearPCM uint32 = 0x6C70636D // 'lpcm'

	FormatFlagIsFloat          uint32 = 1 << 0
	FormatFlagIsPacked         uint32 = 1 << 3
	FormatFlagIsNonInterleaved uint32 = 1 << 5
)

// StreamDescription mirrors the platform's audio stream basic description.
// Field order and sizes match the wire layout so it can be decoded directly
// from property bytes.
type StreamDescription struct {
	SampleRate       float64
	FormatID         uint32
	FormatFlags      uint32
	BytesPerPacket   uint32
	FramesPerPacket  uint32
	BytesPerFrame    uint32
	ChannelsPerFrame uint32
	BitsPerChannel   uint32
	Reserved         uint32
}

// IsFloat32PCM reports whether the description is native float32 linear PCM,
// the only encoding a process tap produces.
func (d StreamDescription) IsFloat32PCM() bool {
	return d.FormatID == FormatLinearPCM && d.FormatFlags&FormatFlagIsFloat != 0 && d.BitsPerChannel == 32
}

// Timestamp is the platform's audio timestamp pair.
type Timestamp struct {
	SampleTime float64
	HostTime   uint64
}

// Buffer is one buffer of an I/O callback's buffer list. Data is only valid
// for the duration of the callback invocation.
type Buffer struct {
	Channels uint32
	Data     []byte
}

// BufferList is the ordered set of buffers handed to an I/O callback.
type BufferList []Buffer

// IOProc is the real-time I/O callback. It runs on a platform-managed
// real-time thread and must not block, allocate unboundedly, or perform I/O
// beyond copying samples out. The output list is present for symmetry with
// the platform contract and is unused for capture.
type IOProc func(now Timestamp, in BufferList, inTime Timestamp, out BufferList, outTime Timestamp)

// IOProcID identifies a registered I/O callback on a device.
type IOProcID uintptr

// TapDescription describes the process tap to create: a global capture of
// everything routed to the default output, excluding no processes.
type TapDescription struct {
	Name             string
	ExcludeProcesses []ObjectID
	Private          bool
	Exclusive        bool
	Muted            bool
}

// SubTap names one tap constituent of an aggregate device.
type SubTap struct {
	UID               string
	DriftCompensation bool
}

// AggregateDescription describes the virtual device that exposes a tap as a
// readable stream.
type AggregateDescription struct {
	Name      string
	UID       string
	Taps      []SubTap
	AutoStart bool
	Private   bool
}

// Host is the raw platform surface. Property reads return the property's
// bytes verbatim; string-typed properties are delivered as UTF-8 without a
// trailing NUL. Every call is a synchronous round-trip to the platform.
//
// The darwin implementation is backed by the CoreAudio hardware API; other
// platforms get a stub that fails every call.
type Host interface {
	// PropertyData reads the value bytes of one property. A non-zero status
	// means the platform could not report a size or value for the address.
	PropertyData(obj ObjectID, addr PropertyAddress, qualifier []byte) ([]byte, OSStatus)

	// SetPropertyData writes the value bytes of one settable property.
	SetPropertyData(obj ObjectID, addr PropertyAddress, data []byte) OSStatus

	CreateProcessTap(desc TapDescription) (ObjectID, OSStatus)
	DestroyProcessTap(tap ObjectID) OSStatus

	CreateAggregateDevice(desc AggregateDescription) (ObjectID, OSStatus)
	DestroyAggregateDevice(device ObjectID) OSStatus

	CreateIOProc(device ObjectID, proc IOProc) (IOProcID, OSStatus)
	DestroyIOProc(device ObjectID, id IOProcID) OSStatus
	StartDevice(device ObjectID, id IOProcID) OSStatus
	StopDevice(device ObjectID, id IOProcID) OSStatus

	// AddDeviceAliveListener invokes fn when the device stops being alive
	// (removed, or its tap claimed exclusively elsewhere). fn runs on an
	// arbitrary platform thread.
	AddDeviceAliveListener(device ObjectID, fn func()) error
	RemoveDeviceAliveListener(device ObjectID) error
}
