package heap

import "govm/pkg/object"

// minorGC clears marks, traces from roots, reclaims unmarked generation-0
// objects, and promotes survivors to generation 1. Generation-1 objects are
// never swept by a minor collection. Caller holds h.mu.
func (h *Heap) minorGC() {
	h.clearMarks()
	h.markFromRoots()

	for i := range h.slots {
		s := &h.slots[i]
		if !s.occupied || s.object.Header.Generation != 0 {
			continue
		}
		if s.object.Header.Marked {
			s.object.Header.Generation = 1
			h.youngCnt--
			h.oldCnt++
		} else {
			h.youngCnt--
			h.pushFree(i)
		}
	}
	h.MinorCollections++
}

// majorGC clears marks, traces from roots, and sweeps every unmarked object
// in either generation. Caller holds h.mu.
func (h *Heap) majorGC() {
	h.clearMarks()
	h.markFromRoots()

	for i := range h.slots {
		s := &h.slots[i]
		if !s.occupied || s.object.Header.Marked {
			continue
		}
		if s.object.Header.Generation == 0 {
			h.youngCnt--
		} else {
			h.oldCnt--
		}
		h.pushFree(i)
	}
	h.MajorCollections++
}

func (h *Heap) clearMarks() {
	for i := range h.slots {
		if h.slots[i].occupied {
			h.slots[i].object.Header.Marked = false
		}
	}
}

func (h *Heap) markFromRoots() {
	if h.root == nil {
		return
	}
	for _, obj := range h.root.Roots() {
		mark(obj)
	}
}

// mark performs a transitive trace from obj, descending through
// ClassInstance fields and ArrayInstance elements. The mark bit itself
// prevents infinite recursion on cycles.
func mark(obj *object.Object) {
	if obj == nil || obj.Header.Marked {
		return
	}
	obj.Header.Marked = true

	switch obj.Kind {
	case object.KindClassInstance:
		for _, v := range obj.Fields {
			if v.Tag == object.TagRef && v.Ref != nil {
				mark(v.Ref)
			}
		}
	case object.KindArrayInstance:
		for _, v := range obj.Elements {
			if v.Tag == object.TagRef && v.Ref != nil {
				mark(v.Ref)
			}
		}
	}
}
