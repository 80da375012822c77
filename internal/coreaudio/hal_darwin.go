//go:build darwin

package coreaudio

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreAudio -framework AudioToolbox -framework Foundation

#include <CoreAudio/CoreAudio.h>
#include <CoreAudio/AudioHardwareTapping.h>
#include <CoreAudio/CATapDescription.h>
#include <Foundation/Foundation.h>
#include <stdlib.h>

extern void goIOProcBridge(uintptr_t token,
	const AudioTimeStamp *inNow,
	const AudioBufferList *inInputData, const AudioTimeStamp *inInputTime,
	AudioBufferList *outOutputData, const AudioTimeStamp *inOutputTime);

extern void goDeviceAliveBridge(uintptr_t token);

static OSStatus halCreateProcessTap(const char *name, int priv, int exclusive, int muted,
		const AudioObjectID *excluded, int numExcluded, AudioObjectID *outTap) {
	@autoreleasepool {
		NSMutableArray *excludeList = [NSMutableArray arrayWithCapacity:numExcluded];
		for (int i = 0; i < numExcluded; i++) {
			[excludeList addObject:@(excluded[i])];
		}
		CATapDescription *desc = [[CATapDescription alloc]
			initStereoGlobalTapButExcludeProcesses:excludeList];
		[desc setName:[NSString stringWithUTF8String:name]];
		[desc setPrivate:(priv ? YES : NO)];
		[desc setExclusive:(exclusive ? YES : NO)];
		[desc setMuteBehavior:(muted ? CATapMuted : CATapUnmuted)];
		return AudioHardwareCreateProcessTap(desc, outTap);
	}
}

static OSStatus halCreateAggregate(const char *name, const char *uid,
		const char **tapUIDs, const int *drift, int numTaps,
		int autoStart, int priv, AudioObjectID *outDevice) {
	@autoreleasepool {
		NSMutableArray *taps = [NSMutableArray arrayWithCapacity:numTaps];
		for (int i = 0; i < numTaps; i++) {
			[taps addObject:@{
				@(kAudioSubTapUIDKey): [NSString stringWithUTF8String:tapUIDs[i]],
				@(kAudioSubTapDriftCompensationKey): @(drift[i] ? 1 : 0),
			}];
		}
		NSDictionary *desc = @{
			@(kAudioAggregateDeviceNameKey): [NSString stringWithUTF8String:name],
			@(kAudioAggregateDeviceUIDKey): [NSString stringWithUTF8String:uid],
			@(kAudioAggregateDeviceIsPrivateKey): @(priv ? 1 : 0),
			@(kAudioAggregateDeviceTapAutoStartKey): @(autoStart ? 1 : 0),
			@(kAudioAggregateDeviceTapListKey): taps,
		};
		return AudioHardwareCreateAggregateDevice((__bridge CFDictionaryRef)desc, outDevice);
	}
}

static OSStatus halCreateIOProc(AudioObjectID device, uintptr_t token, AudioDeviceIOProcID *outProc) {
	return AudioDeviceCreateIOProcIDWithBlock(outProc, device, NULL,
		^(const AudioTimeStamp *inNow,
		  const AudioBufferList *inInputData, const AudioTimeStamp *inInputTime,
		  AudioBufferList *outOutputData, const AudioTimeStamp *inOutputTime) {
			goIOProcBridge(token, inNow, inInputData, inInputTime, outOutputData, inOutputTime);
		});
}

static OSStatus halCopyStringProperty(AudioObjectID obj, AudioObjectPropertySelector sel, char **outStr) {
	AudioObjectPropertyAddress addr = {
		sel, kAudioObjectPropertyScopeGlobal, kAudioObjectPropertyElementMain,
	};
	CFStringRef str = NULL;
	UInt32 size = sizeof(str);
	OSStatus status = AudioObjectGetPropertyData(obj, &addr, 0, NULL, &size, &str);
	if (status != kAudioHardwareNoError) {
		return status;
	}
	if (str == NULL) {
		*outStr = NULL;
		return kAudioHardwareNoError;
	}
	CFIndex max = CFStringGetMaximumSizeForEncoding(CFStringGetLength(str), kCFStringEncodingUTF8) + 1;
	char *buf = malloc(max);
	if (!CFStringGetCString(str, buf, max, kCFStringEncodingUTF8)) {
		free(buf);
		CFRelease(str);
		return kAudioHardwareUnspecifiedError;
	}
	CFRelease(str);
	*outStr = buf;
	return kAudioHardwareNoError;
}

static OSStatus halAliveListener(AudioObjectID objectID, UInt32 numAddresses,
		const AudioObjectPropertyAddress *addresses, void *clientData) {
	goDeviceAliveBridge((uintptr_t)clientData);
	return kAudioHardwareNoError;
}

static OSStatus halAddAliveListener(AudioObjectID device, uintptr_t token) {
	AudioObjectPropertyAddress addr = {
		kAudioDevicePropertyDeviceIsAlive,
		kAudioObjectPropertyScopeGlobal,
		kAudioObjectPropertyElementMain,
	};
	return AudioObjectAddPropertyListener(device, &addr, halAliveListener, (void *)token);
}

static OSStatus halRemoveAliveListener(AudioObjectID device, uintptr_t token) {
	AudioObjectPropertyAddress addr = {
		kAudioDevicePropertyDeviceIsAlive,
		kAudioObjectPropertyScopeGlobal,
		kAudioObjectPropertyElementMain,
	};
	return AudioObjectRemovePropertyListener(device, &addr, halAliveListener, (void *)token);
}
*/
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// hal is the CoreAudio-backed Host. All registry state lives on the Go side
// keyed by tokens handed to the platform as opaque client data.
type hal struct {
	mu        sync.Mutex
	nextToken uintptr
	ioProcs   map[uintptr]IOProc
	procToken map[IOProcID]uintptr
	listeners map[ObjectID]halListener
	aliveFns  map[uintptr]func()
}

type halListener struct {
	token uintptr
}

var platformHost = &hal{
	nextToken: 1,
	ioProcs:   map[uintptr]IOProc{},
	procToken: map[IOProcID]uintptr{},
	listeners: map[ObjectID]halListener{},
	aliveFns:  map[uintptr]func(){},
}

// NewHost returns the CoreAudio-backed Host. There is one HAL per process;
// tokens and listener registrations are shared across all callers.
func NewHost() (Host, error) {
	return platformHost, nil
}

func cAddress(addr PropertyAddress) C.AudioObjectPropertyAddress {
	return C.AudioObjectPropertyAddress{
		mSelector: C.AudioObjectPropertySelector(addr.Selector),
		mScope:    C.AudioObjectPropertyScope(addr.Scope),
		mElement:  C.AudioObjectPropertyElement(addr.Element),
	}
}

// stringSelector reports whether the property value is a CFString on the
// platform side and must be converted to UTF-8 bytes per the Host contract.
func stringSelector(sel Selector) bool {
	return sel == SelectorDeviceUID || sel == SelectorTapUID
}

func (h *hal) PropertyData(obj ObjectID, addr PropertyAddress, qualifier []byte) ([]byte, OSStatus) {
	if stringSelector(addr.Selector) {
		var cstr *C.char
		status := OSStatus(C.halCopyStringProperty(C.AudioObjectID(obj), C.AudioObjectPropertySelector(addr.Selector), &cstr))
		if !status.OK() {
			return nil, status
		}
		if cstr == nil {
			return nil, status
		}
		defer C.free(unsafe.Pointer(cstr))
		return []byte(C.GoString(cstr)), status
	}

	caddr := cAddress(addr)
	var qptr unsafe.Pointer
	if len(qualifier) > 0 {
		qptr = unsafe.Pointer(&qualifier[0])
	}
	var size C.UInt32
	status := OSStatus(C.AudioObjectGetPropertyDataSize(C.AudioObjectID(obj), &caddr, C.UInt32(len(qualifier)), qptr, &size))
	if !status.OK() {
		return nil, status
	}
	buf := make([]byte, int(size))
	var bptr unsafe.Pointer
	if size > 0 {
		bptr = unsafe.Pointer(&buf[0])
	}
	status = OSStatus(C.AudioObjectGetPropertyData(C.AudioObjectID(obj), &caddr, C.UInt32(len(qualifier)), qptr, &size, bptr))
	if !status.OK() {
		return nil, status
	}
	return buf[:int(size)], status
}

func (h *hal) SetPropertyData(obj ObjectID, addr PropertyAddress, data []byte) OSStatus {
	caddr := cAddress(addr)
	var dptr unsafe.Pointer
	if len(data) > 0 {
		dptr = unsafe.Pointer(&data[0])
	}
	return OSStatus(C.AudioObjectSetPropertyData(C.AudioObjectID(obj), &caddr, 0, nil, C.UInt32(len(data)), dptr))
}

func (h *hal) CreateProcessTap(desc TapDescription) (ObjectID, OSStatus) {
	cname := C.CString(desc.Name)
	defer C.free(unsafe.Pointer(cname))

	var excluded *C.AudioObjectID
	if len(desc.ExcludeProcesses) > 0 {
		excluded = (*C.AudioObjectID)(unsafe.Pointer(&desc.ExcludeProcesses[0]))
	}

	var tapID C.AudioObjectID
	status := OSStatus(C.halCreateProcessTap(cname,
		cBool(desc.Private), cBool(desc.Exclusive), cBool(desc.Muted),
		excluded, C.int(len(desc.ExcludeProcesses)), &tapID))
	return ObjectID(tapID), status
}

func (h *hal) DestroyProcessTap(tap ObjectID) OSStatus {
	return OSStatus(C.AudioHardwareDestroyProcessTap(C.AudioObjectID(tap)))
}

func (h *hal) CreateAggregateDevice(desc AggregateDescription) (ObjectID, OSStatus) {
	cname := C.CString(desc.Name)
	defer C.free(unsafe.Pointer(cname))
	cuid := C.CString(desc.UID)
	defer C.free(unsafe.Pointer(cuid))

	n := len(desc.Taps)
	tapUIDs := make([]*C.char, n)
	drift := make([]C.int, n)
	for i, t := range desc.Taps {
		tapUIDs[i] = C.CString(t.UID)
		drift[i] = C.int(cBool(t.DriftCompensation))
	}
	defer func() {
		for _, s := range tapUIDs {
			C.free(unsafe.Pointer(s))
		}
	}()

	var uidPtr **C.char
	var driftPtr *C.int
	if n > 0 {
		uidPtr = &tapUIDs[0]
		driftPtr = &drift[0]
	}

	var deviceID C.AudioObjectID
	status := OSStatus(C.halCreateAggregate(cname, cuid, uidPtr, driftPtr, C.int(n),
		cBool(desc.AutoStart), cBool(desc.Private), &deviceID))
	return ObjectID(deviceID), status
}

func (h *hal) DestroyAggregateDevice(device ObjectID) OSStatus {
	return OSStatus(C.AudioHardwareDestroyAggregateDevice(C.AudioObjectID(device)))
}

func (h *hal) CreateIOProc(device ObjectID, proc IOProc) (IOProcID, OSStatus) {
	h.mu.Lock()
	token := h.nextToken
	h.nextToken++
	h.ioProcs[token] = proc
	h.mu.Unlock()

	var procID C.AudioDeviceIOProcID
	status := OSStatus(C.halCreateIOProc(C.AudioObjectID(device), C.uintptr_t(token), &procID))
	if !status.OK() {
		h.mu.Lock()
		delete(h.ioProcs, token)
		h.mu.Unlock()
		return 0, status
	}

	id := IOProcID(uintptr(unsafe.Pointer(procID)))
	h.mu.Lock()
	h.procToken[id] = token
	h.mu.Unlock()
	return id, status
}

func (h *hal) DestroyIOProc(device ObjectID, id IOProcID) OSStatus {
	status := OSStatus(C.AudioDeviceDestroyIOProcID(C.AudioObjectID(device), C.AudioDeviceIOProcID(unsafe.Pointer(id))))
	h.mu.Lock()
	if token, ok := h.procToken[id]; ok {
		delete(h.ioProcs, token)
		delete(h.procToken, id)
	}
	h.mu.Unlock()
	return status
}

func (h *hal) StartDevice(device ObjectID, id IOProcID) OSStatus {
	return OSStatus(C.AudioDeviceStart(C.AudioObjectID(device), C.AudioDeviceIOProcID(unsafe.Pointer(id))))
}

func (h *hal) StopDevice(device ObjectID, id IOProcID) OSStatus {
	return OSStatus(C.AudioDeviceStop(C.AudioObjectID(device), C.AudioDeviceIOProcID(unsafe.Pointer(id))))
}

func (h *hal) AddDeviceAliveListener(device ObjectID, fn func()) error {
	h.mu.Lock()
	if _, ok := h.listeners[device]; ok {
		h.mu.Unlock()
		return fmt.Errorf("device %d already has an alive listener", device)
	}
	token := h.nextToken
	h.nextToken++
	h.listeners[device] = halListener{token: token}
	h.aliveFns[token] = fn
	h.mu.Unlock()

	if status := OSStatus(C.halAddAliveListener(C.AudioObjectID(device), C.uintptr_t(token))); !status.OK() {
		h.mu.Lock()
		delete(h.listeners, device)
		delete(h.aliveFns, token)
		h.mu.Unlock()
		return &StatusError{Op: "add device alive listener", Status: status}
	}
	return nil
}

func (h *hal) RemoveDeviceAliveListener(device ObjectID) error {
	h.mu.Lock()
	l, ok := h.listeners[device]
	if ok {
		delete(h.listeners, device)
		delete(h.aliveFns, l.token)
	}
	h.mu.Unlock()
	if !ok {
		return nil
	}
	if status := OSStatus(C.halRemoveAliveListener(C.AudioObjectID(device), C.uintptr_t(l.token))); !status.OK() {
		return &StatusError{Op: "remove device alive listener", Status: status}
	}
	return nil
}

func (h *hal) lookupIOProc(token uintptr) IOProc {
	h.mu.Lock()
	proc := h.ioProcs[token]
	h.mu.Unlock()
	return proc
}

func (h *hal) lookupAliveFn(token uintptr) func() {
	h.mu.Lock()
	fn := h.aliveFns[token]
	h.mu.Unlock()
	return fn
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}
