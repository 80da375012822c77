//go:build darwin

package coreaudio

/*
#include <CoreAudio/CoreAudio.h>
*/
import "C"

import "unsafe"

const maxBuffers = 64

// goIOProcBridge dispatches a platform I/O callback to the registered Go
// proc. It runs on the real-time audio thread; the buffer views it builds
// alias platform memory and are only valid for this invocation.
//
//export goIOProcBridge
func goIOProcBridge(token C.uintptr_t,
	inNow *C.AudioTimeStamp,
	inInputData *C.AudioBufferList, inInputTime *C.AudioTimeStamp,
	outOutputData *C.AudioBufferList, inOutputTime *C.AudioTimeStamp) {

	proc := platformHost.lookupIOProc(uintptr(token))
	if proc == nil {
		return
	}
	proc(goTimestamp(inNow),
		goBufferList(inInputData), goTimestamp(inInputTime),
		goBufferList(outOutputData), goTimestamp(inOutputTime))
}

// goDeviceAliveBridge dispatches a device-alive property notification to the
// registered handler.
//
//export goDeviceAliveBridge
func goDeviceAliveBridge(token C.uintptr_t) {
	if fn := platformHost.lookupAliveFn(uintptr(token)); fn != nil {
		fn()
	}
}

func goTimestamp(ts *C.AudioTimeStamp) Timestamp {
	if ts == nil {
		return Timestamp{}
	}
	return Timestamp{
		SampleTime: float64(ts.mSampleTime),
		HostTime:   uint64(ts.mHostTime),
	}
}

func goBufferList(list *C.AudioBufferList) BufferList {
	if list == nil {
		return nil
	}
	n := int(list.mNumberBuffers)
	if n == 0 {
		return nil
	}
	if n > maxBuffers {
		n = maxBuffers
	}
	raw := (*[maxBuffers]C.AudioBuffer)(unsafe.Pointer(&list.mBuffers[0]))[:n:n]
	out := make(BufferList, n)
	for i, b := range raw {
		buf := Buffer{Channels: uint32(b.mNumberChannels)}
		if b.mData != nil && b.mDataByteSize > 0 {
			buf.Data = unsafe.Slice((*byte)(b.mData), int(b.mDataByteSize))
		}
		out[i] = buf
	}
	return out
}
