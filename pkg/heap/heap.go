// Package heap implements the fixed-capacity, generational managed heap the
// interpreter allocates objects and arrays into.
package heap

import (
	"fmt"
	"sync"

	"govm/pkg/object"
)

// Root supplies the heap's root set: every reference reachable from an
// interpreter frame's locals/operands, plus every reference held in a
// loaded class's static storage. The interpreter and loader implement this.
type Root interface {
	Roots() []*object.Object
}

// ErrHeapExhausted is returned when an allocation still cannot be satisfied
// after both a minor and a major collection.
type ErrHeapExhausted struct{ Capacity int }

func (e *ErrHeapExhausted) Error() string {
	return fmt.Sprintf("heap: exhausted at capacity %d after minor and major GC", e.Capacity)
}

type slot struct {
	occupied bool
	object   *object.Object
	// free-list linkage, valid only when !occupied
	prev, next int
}

const noSlot = -1

// Heap is a fixed-size slot pool with a free list and a two-generation
// mark-sweep collector. It never grows past its configured capacity;
// allocation failure past that capacity is reported as ErrHeapExhausted
// rather than silently falling back to unbounded growth.
type Heap struct {
	mu sync.Mutex

	slots     []slot
	freeHead  int
	nextID    uint64
	youngCnt  int
	oldCnt    int

	root Root

	// MinorCollections/MajorCollections are exposed for the observation
	// hook and tests; they are not consulted by the allocator itself.
	MinorCollections int
	MajorCollections int
}

// New builds a heap with room for capacity objects. root supplies the GC
// root set and is typically the interpreter's frame stack plus the loader's
// static storage.
func New(capacity int, root Root) *Heap {
	h := &Heap{
		slots:    make([]slot, capacity),
		freeHead: 0,
		root:     root,
	}
	for i := range h.slots {
		h.slots[i].prev = i - 1
		h.slots[i].next = i + 1
	}
	if capacity > 0 {
		h.slots[capacity-1].next = noSlot
	} else {
		h.freeHead = noSlot
	}
	return h
}

func (h *Heap) popFree() int {
	if h.freeHead == noSlot {
		return noSlot
	}
	idx := h.freeHead
	h.freeHead = h.slots[idx].next
	if h.freeHead != noSlot {
		h.slots[h.freeHead].prev = noSlot
	}
	return idx
}

func (h *Heap) pushFree(idx int) {
	h.slots[idx].occupied = false
	h.slots[idx].object = nil
	h.slots[idx].prev = noSlot
	h.slots[idx].next = h.freeHead
	if h.freeHead != noSlot {
		h.slots[h.freeHead].prev = idx
	}
	h.freeHead = idx
}

// allocate places obj in a free slot, running GC as needed per the spec's
// allocation algorithm: try directly, then minor GC + retry, then major GC
// + retry, then fail.
func (h *Heap) allocate(obj *object.Object) (*object.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if idx := h.popFree(); idx != noSlot {
		h.place(idx, obj)
		return obj, nil
	}

	h.minorGC()
	if idx := h.popFree(); idx != noSlot {
		h.place(idx, obj)
		return obj, nil
	}

	h.majorGC()
	if idx := h.popFree(); idx != noSlot {
		h.place(idx, obj)
		return obj, nil
	}

	return nil, &ErrHeapExhausted{Capacity: len(h.slots)}
}

func (h *Heap) place(idx int, obj *object.Object) {
	obj.Header.Generation = 0
	obj.Header.Identity = h.nextID
	h.nextID++
	h.slots[idx].occupied = true
	h.slots[idx].object = obj
	h.youngCnt++
}

// AllocateClass allocates a zeroed ClassInstance for className with the
// given per-slot field descriptors (superclass fields first, per
// LoadedClass's layout invariant).
func (h *Heap) AllocateClass(className string, fieldDescriptors []string) (*object.Object, error) {
	obj := object.NewClassInstance(className, fieldDescriptors, 0)
	return h.allocate(obj)
}

// AllocateArray allocates a zeroed array of length with the given element
// type descriptor.
func (h *Heap) AllocateArray(elementType string, length int) (*object.Object, error) {
	if length < 0 {
		return nil, fmt.Errorf("heap: negative array length %d", length)
	}
	obj := object.NewArrayInstance(elementType, length, 0)
	return h.allocate(obj)
}

// AllocateString builds the two-allocation representation the spec calls
// for: a char array of the string's UTF-16 code units, then a String
// ClassInstance whose single "value" field references that array.
func (h *Heap) AllocateString(s string) (*object.Object, error) {
	units := utf16Units(s)
	arr, err := h.AllocateArray("C", len(units))
	if err != nil {
		return nil, fmt.Errorf("heap: allocating char array for string: %w", err)
	}
	for i, u := range units {
		arr.Elements[i] = object.Value{Tag: object.TagInt, Int: int32(u)}
	}

	str, err := h.AllocateClass("java/lang/String", []string{"[C"})
	if err != nil {
		return nil, fmt.Errorf("heap: allocating String instance: %w", err)
	}
	str.Fields[0] = object.Value{Tag: object.TagRef, Ref: arr}
	return str, nil
}

// Stats reports current population for diagnostics and the observation hook.
func (h *Heap) Stats() (young, old, capacity int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.youngCnt, h.oldCnt, len(h.slots)
}

// LiveObjects returns every currently occupied slot's object in the given
// generation, for the observation hook's heap snapshot records.
func (h *Heap) LiveObjects(generation uint8) []*object.Object {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*object.Object
	for _, s := range h.slots {
		if s.occupied && s.object.Header.Generation == generation {
			out = append(out, s.object)
		}
	}
	return out
}

func utf16Units(s string) []uint16 {
	var units []uint16
	for _, r := range s {
		if r < 0x10000 {
			units = append(units, uint16(r))
			continue
		}
		r -= 0x10000
		units = append(units, uint16(0xD800+(r>>10)), uint16(0xDC00+(r&0x3FF)))
	}
	return units
}
