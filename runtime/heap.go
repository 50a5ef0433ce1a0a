package runtime

import "fmt"

// Heap is the simple managed heap spec §9 prefers: objects are addressed by
// a monotonically increasing handle rather than a raw address, so the
// interpreter's own Go allocator never leaks into observable behavior.
type Heap struct {
	objects map[uint64][]byte
	next    uint64
}

// NewHeap returns an empty heap. Handle 0 is never issued, so it can serve
// as "no object" the way a null token serves as "no reference".
func NewHeap() *Heap {
	return &Heap{objects: map[uint64][]byte{}, next: 1}
}

// Alloc reserves size bytes and returns the new object's handle.
func (h *Heap) Alloc(size uint32) uint64 {
	handle := h.next
	h.next++
	h.objects[handle] = make([]byte, size)
	return handle
}

// Object returns the byte slice backing handle, or false if it is unknown.
func (h *Heap) Object(handle uint64) ([]byte, bool) {
	obj, ok := h.objects[handle]
	return obj, ok
}

// adopt inserts obj under an explicit handle instead of the next
// monotonic one. A collision with an existing handle is a HeapCollision
// per spec §7.
func (h *Heap) adopt(handle uint64, obj []byte) error {
	if _, exists := h.objects[handle]; exists {
		return fmt.Errorf("runtime: heap adopt %d: %w", handle, ErrHeapCollision)
	}
	h.objects[handle] = obj
	if handle >= h.next {
		h.next = handle + 1
	}
	return nil
}
