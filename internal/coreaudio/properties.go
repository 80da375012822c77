package coreaudio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Property bytes are produced by a little-endian platform; decode them the
// same way regardless of where tests run.
var wire = binary.LittleEndian

// ReadProperty decodes one fixed-size property value.
func ReadProperty[T any](h Host, obj ObjectID, addr PropertyAddress, qualifier []byte) (T, error) {
	var v T
	data, status := h.PropertyData(obj, addr, qualifier)
	if !status.OK() {
		return v, propertyError(obj, addr, status)
	}
	if err := binary.Read(bytes.NewReader(data), wire, &v); err != nil {
		return v, fmt.Errorf("decode property %#08x on object %d: %w", uint32(addr.Selector), obj, err)
	}
	return v, nil
}

// ReadPropertyList decodes a variable-length array property.
func ReadPropertyList[T any](h Host, obj ObjectID, addr PropertyAddress, qualifier []byte) ([]T, error) {
	var elem T
	data, status := h.PropertyData(obj, addr, qualifier)
	if !status.OK() {
		return nil, propertyError(obj, addr, status)
	}
	size := binary.Size(elem)
	if size <= 0 {
		return nil, fmt.Errorf("property %#08x: element type has no fixed size", uint32(addr.Selector))
	}
	out := make([]T, len(data)/size)
	if err := binary.Read(bytes.NewReader(data[:len(out)*size]), wire, &out); err != nil {
		return nil, fmt.Errorf("decode property list %#08x on object %d: %w", uint32(addr.Selector), obj, err)
	}
	return out, nil
}

// ReadPropertyString decodes a string-typed property. The Host contract
// delivers such values as UTF-8; a defensive trailing NUL is trimmed.
func ReadPropertyString(h Host, obj ObjectID, addr PropertyAddress) (string, error) {
	data, status := h.PropertyData(obj, addr, nil)
	if !status.OK() {
		return "", propertyError(obj, addr, status)
	}
	return string(bytes.TrimRight(data, "\x00")), nil
}

// RequireSystemObject guards accessors for hardware-wide properties.
func RequireSystemObject(obj ObjectID) error {
	if obj != SystemObjectID {
		return fmt.Errorf("%w: got object %d", ErrNotSystemObject, obj)
	}
	return nil
}

// ReadDefaultOutputDevice returns the device system audio is routed to.
// obj must be the system object.
func ReadDefaultOutputDevice(h Host, obj ObjectID) (ObjectID, error) {
	if err := RequireSystemObject(obj); err != nil {
		return UnknownObjectID, err
	}
	return ReadProperty[ObjectID](h, obj, GlobalAddress(SelectorDefaultOutputDevice), nil)
}

// ReadProcessList returns every process object known to the audio system.
// obj must be the system object.
func ReadProcessList(h Host, obj ObjectID) ([]ObjectID, error) {
	if err := RequireSystemObject(obj); err != nil {
		return nil, err
	}
	return ReadPropertyList[ObjectID](h, obj, GlobalAddress(SelectorProcessObjectList), nil)
}

// TranslatePID resolves an OS process identifier to its audio process
// object. obj must be the system object.
func TranslatePID(h Host, obj ObjectID, pid int32) (ObjectID, error) {
	if err := RequireSystemObject(obj); err != nil {
		return UnknownObjectID, err
	}
	qualifier := make([]byte, 4)
	wire.PutUint32(qualifier, uint32(pid))
	return ReadProperty[ObjectID](h, obj, GlobalAddress(SelectorTranslatePIDToObject), qualifier)
}

// ReadDeviceUID returns the stable UID string of a device.
func ReadDeviceUID(h Host, device ObjectID) (string, error) {
	return ReadPropertyString(h, device, GlobalAddress(SelectorDeviceUID))
}

// ReadTapUID returns the UID string of a process tap, used to bind the tap
// into an aggregate device description.
func ReadTapUID(h Host, tap ObjectID) (string, error) {
	return ReadPropertyString(h, tap, GlobalAddress(SelectorTapUID))
}

// ReadTapStreamFormat returns the stream format the tap natively produces.
func ReadTapStreamFormat(h Host, tap ObjectID) (StreamDescription, error) {
	return ReadProperty[StreamDescription](h, tap, GlobalAddress(SelectorTapStreamFormat), nil)
}
