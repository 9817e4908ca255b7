// Package observe implements the optional observation hook: a stream of
// {header, JSON payload} records describing frame and heap state changes as
// the interpreter executes, delivered over a framed transport, a sink file,
// or both. It is disabled by default and adds no overhead when nil.
package observe

import (
	"encoding/json"
	"fmt"
	"io"

	"govm/pkg/object"
)

// Header is the one-word tag every record is framed with.
type Header string

const (
	HeaderData Header = "DATA"
	HeaderEOF  Header = "EOF"
)

// Hook drives both delivery channels: a framed transport for a live
// external consumer, and a newline-free JSON array file sink. Either may be
// nil; a nil Hook pointer is valid and every Emit* method on it is a no-op,
// so call sites can hold a *Hook unconditionally without a nilness check at
// every call site.
type Hook struct {
	transport   *FrameWriter
	sink        *ArraySink
	snapOnWrite bool
}

// New builds a Hook. transport and sink may each be nil to disable that
// delivery channel independently; passing both as nil yields a Hook that
// accepts Emit calls but delivers nothing (equivalent to disabling
// observation, without needing a separate on/off flag).
func New(transport io.Writer, sink io.Writer, snapOnWrite bool) *Hook {
	h := &Hook{snapOnWrite: snapOnWrite}
	if transport != nil {
		h.transport = NewFrameWriter(transport)
	}
	if sink != nil {
		h.sink = NewArraySink(sink)
	}
	return h
}

// SnapOnWrite reports whether heap snapshot records are on, the --snap CLI
// flag's effect. When it is, the interpreter's dispatch loop emits one
// snapshot per generation after every instruction it executes, whether or
// not that instruction wrote to the heap.
func (h *Hook) SnapOnWrite() bool { return h != nil && h.snapOnWrite }

func (h *Hook) emit(header Header, payload interface{}) error {
	if h == nil {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("observe: marshaling %s payload: %w", header, err)
	}
	if h.transport != nil {
		if err := h.transport.WriteFrame(header, body); err != nil {
			return fmt.Errorf("observe: writing frame: %w", err)
		}
	}
	if h.sink != nil {
		if err := h.sink.WriteRecord(header, body); err != nil {
			return fmt.Errorf("observe: writing sink record: %w", err)
		}
	}
	return nil
}

// EmitFrame records a method frame's current state: name, program counter,
// locals and operand stack, each value rendered per RenderValue.
func (h *Hook) EmitFrame(name string, pc int, locals, operands []object.Value) error {
	if h == nil {
		return nil
	}
	return h.emit(HeaderData, FrameSnapshot{
		Kind:     "frame",
		Name:     name,
		PC:       pc,
		Locals:   RenderValues(locals),
		Operands: RenderValues(operands),
	})
}

// EmitStackPush/EmitStackPop record a single operand stack mutation.
func (h *Hook) EmitStackPush(v object.Value) error { return h.emitStackEvent("push", v) }
func (h *Hook) EmitStackPop(v object.Value) error  { return h.emitStackEvent("pop", v) }

func (h *Hook) emitStackEvent(op string, v object.Value) error {
	if h == nil {
		return nil
	}
	return h.emit(HeaderData, StackEvent{Kind: "stack", Op: op, Value: RenderValue(v)})
}

// EmitInstruction records the instruction about to execute.
func (h *Hook) EmitInstruction(mnemonic string, address uint32) error {
	if h == nil {
		return nil
	}
	return h.emit(HeaderData, InstructionEvent{Kind: "instruction", Mnemonic: mnemonic, Address: address})
}

// EmitHeapSnapshot records every live object in one generation.
func (h *Hook) EmitHeapSnapshot(generation uint8, objects []*object.Object) error {
	if h == nil {
		return nil
	}
	return h.emit(HeaderData, HeapSnapshot{
		Kind:       "heap",
		Generation: generation,
		Objects:    RenderObjects(objects),
	})
}

// Close writes the closing EOF record and flushes the file sink's closing
// array bracket. Safe to call on a nil Hook.
func (h *Hook) Close() error {
	if h == nil {
		return nil
	}
	if err := h.emit(HeaderEOF, struct{}{}); err != nil {
		return err
	}
	if h.sink != nil {
		return h.sink.Close()
	}
	return nil
}
