package observe

import (
	"fmt"

	"govm/pkg/object"
)

// FrameSnapshot is the JSON payload for a frame state record.
type FrameSnapshot struct {
	Kind     string        `json:"kind"`
	Name     string        `json:"name"`
	PC       int           `json:"pc"`
	Locals   []interface{} `json:"locals"`
	Operands []interface{} `json:"operands"`
}

// StackEvent is the JSON payload for a single push/pop.
type StackEvent struct {
	Kind  string      `json:"kind"`
	Op    string      `json:"op"`
	Value interface{} `json:"value"`
}

// InstructionEvent is the JSON payload for the instruction about to run.
type InstructionEvent struct {
	Kind     string `json:"kind"`
	Mnemonic string `json:"mnemonic"`
	Address  uint32 `json:"address"`
}

// HeapSnapshot is the JSON payload for one generation's live object set.
type HeapSnapshot struct {
	Kind       string        `json:"kind"`
	Generation uint8         `json:"generation"`
	Objects    []interface{} `json:"objects"`
}

// RenderValue renders a single object.Value the way the observation hook's
// contract requires: primitives render as themselves, references render as
// the string "Object Id: <identity>", and null renders as nil (JSON null).
func RenderValue(v object.Value) interface{} {
	switch v.Tag {
	case object.TagInt:
		return v.Int
	case object.TagLong:
		return v.Long
	case object.TagFloat:
		return v.Float
	case object.TagDouble:
		return v.Dbl
	case object.TagRef:
		if v.Ref == nil {
			return nil
		}
		return fmt.Sprintf("Object Id: %d", v.Ref.Header.Identity)
	default:
		return nil
	}
}

// RenderValues maps RenderValue over a slice, used for locals/operand stack
// snapshots.
func RenderValues(values []object.Value) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = RenderValue(v)
	}
	return out
}

// renderedObject is one heap object's JSON shape in a heap snapshot: its
// identity, its class or element type, and its fields/elements rendered the
// same way a frame's locals are.
type renderedObject struct {
	ID     uint64        `json:"id"`
	Class  string        `json:"class,omitempty"`
	Array  string        `json:"elementType,omitempty"`
	Fields []interface{} `json:"fields,omitempty"`
}

// RenderObjects renders a generation's live object set for a heap snapshot
// record.
func RenderObjects(objects []*object.Object) []interface{} {
	out := make([]interface{}, len(objects))
	for i, obj := range objects {
		if obj.Kind == object.KindArrayInstance {
			out[i] = renderedObject{ID: obj.Header.Identity, Array: obj.ElementType, Fields: RenderValues(obj.Elements)}
		} else {
			out[i] = renderedObject{ID: obj.Header.Identity, Class: obj.ClassName, Fields: RenderValues(obj.Fields)}
		}
	}
	return out
}
