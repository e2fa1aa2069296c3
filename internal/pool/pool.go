// Package pool recycles the small allocations the hot paths churn through:
// the scratch maps built for synthetic event payloads and the byte buffers
// the telemetry uploader assembles JSONL batches in. Both are acquired,
// used within a single call frame, and returned; nothing pooled here ever
// crosses a channel or outlives its caller.
package pool

import (
	"bytes"
	"sync"
)

var mapPool = sync.Pool{
	New: func() interface{} {
		return make(map[string]interface{}, 8)
	},
}

var bufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// GetMap returns an empty scratch map.
func GetMap() map[string]interface{} {
	m := mapPool.Get().(map[string]interface{})
	for k := range m {
		delete(m, k)
	}
	return m
}

// PutMap returns a map obtained from GetMap. The caller must not retain any
// reference to it afterwards.
func PutMap(m map[string]interface{}) {
	mapPool.Put(m)
}

// GetBuffer returns an empty byte buffer.
func GetBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// PutBuffer returns a buffer obtained from GetBuffer.
func PutBuffer(b *bytes.Buffer) {
	bufPool.Put(b)
}
