package wdltype

import (
	"fmt"
	"sync"
)

// Registry interns compound type definitions so that two structurally equal
// compounds share a DefID, and provides the pure functions (coercion,
// equivalence, constraint satisfaction, display) that operate over Types.
//
// Registry is append-only: once a DefID is assigned it is never reused or
// mutated, so readers never need to block on writers beyond the duration of
// a single Intern call.
type Registry struct {
	mu   sync.RWMutex
	defs []CompoundDef
	byKey map[string]DefID
}

// NewRegistry constructs an empty type registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]DefID)}
}

// Intern canonicalizes def, returning the DefID shared by every structurally
// equal compound interned so far. Nested compound member/elem/key/value
// types must already carry DefIDs from this same registry (intern bottom-up:
// innermost compounds first).
func (r *Registry) Intern(def CompoundDef) DefID {
	key := def.structuralKey()

	r.mu.RLock()
	if id, ok := r.byKey[key]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byKey[key]; ok {
		return id
	}
	id := DefID(len(r.defs))
	r.defs = append(r.defs, def)
	r.byKey[key] = id
	return id
}

// Lookup returns the interned definition for id.
func (r *Registry) Lookup(id DefID) (CompoundDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(r.defs) {
		return CompoundDef{}, false
	}
	return r.defs[id], true
}

// Array builds (and interns) an Array[elem] or Array[elem]+ type.
func (r *Registry) Array(elem Type, nonEmpty bool) Type {
	id := r.Intern(CompoundDef{Kind: CompoundArray, Elem: elem, NonEmpty: nonEmpty})
	return Type{Kind: KindCompound, Def: id}
}

// Pair builds (and interns) a Pair[l, r] type.
func (r *Registry) Pair(l, rt Type) Type {
	id := r.Intern(CompoundDef{Kind: CompoundPair, Left: l, Right: rt})
	return Type{Kind: KindCompound, Def: id}
}

// Map builds (and interns) a Map[k, v] type.
func (r *Registry) Map(k, v Type) Type {
	id := r.Intern(CompoundDef{Kind: CompoundMap, Key: k, Value: v})
	return Type{Kind: KindCompound, Def: id}
}

// Struct builds (and interns) a named struct type.
func (r *Registry) Struct(name string, members []StructMember) Type {
	id := r.Intern(CompoundDef{Kind: CompoundStruct, Name: name, Members: members})
	return Type{Kind: KindCompound, Def: id}
}

// CallOutput builds (and interns) a call-output pseudo-struct type.
func (r *Registry) CallOutput(members []StructMember) Type {
	id := r.Intern(CompoundDef{Kind: CompoundCallOutput, Members: members})
	return Type{Kind: KindCompound, Def: id}
}

// Display renders t in WDL surface syntax, e.g. "Array[Int]+?",
// "Map[String, File]", "Pair[X, Y]", "MyStruct?".
func (r *Registry) Display(t Type) string {
	s := r.displayBare(t)
	if t.Optional && t.Kind != KindNone {
		s += "?"
	}
	return s
}

func (r *Registry) displayBare(t Type) string {
	switch t.Kind {
	case KindBoolean:
		return "Boolean"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindFile:
		return "File"
	case KindDirectory:
		return "Directory"
	case KindObject:
		return "Object"
	case KindOptionalObject:
		return "Object"
	case KindTask:
		return "task"
	case KindHints:
		return "hints"
	case KindInput:
		return "input"
	case KindOutput:
		return "output"
	case KindUnion:
		return "Union"
	case KindNone:
		return "None"
	case KindCompound:
		def, ok := r.Lookup(t.Def)
		if !ok {
			return "<unknown>"
		}
		switch def.Kind {
		case CompoundArray:
			s := fmt.Sprintf("Array[%s]", r.Display(def.Elem))
			if def.NonEmpty {
				s += "+"
			}
			return s
		case CompoundPair:
			return fmt.Sprintf("Pair[%s, %s]", r.Display(def.Left), r.Display(def.Right))
		case CompoundMap:
			return fmt.Sprintf("Map[%s, %s]", r.Display(def.Key), r.Display(def.Value))
		case CompoundStruct:
			return def.Name
		case CompoundCallOutput:
			return "CallOutput"
		}
	}
	return "<unknown>"
}
