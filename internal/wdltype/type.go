// Package wdltype implements the WDL type system: an interned representation
// of types, coercion and equivalence rules, and the named constraint
// predicates used by stdlib function signatures. The registry is a pure
// data structure: it performs no I/O and raises no errors of its own.
package wdltype

import (
	"fmt"
	"strings"
)

// Kind distinguishes the broad family a Type belongs to.
type Kind int

const (
	KindBoolean Kind = iota
	KindInt
	KindFloat
	KindString
	KindFile
	KindDirectory

	KindCompound // see Type.Def for which CompoundDef kind

	KindObject
	KindOptionalObject

	// Hidden types: scope-gated type references rather than ordinary values.
	KindTask
	KindHints
	KindInput
	KindOutput

	KindUnion
	KindNone
)

func (k Kind) String() string {
	switch k {
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
	case KindCompound:
		return "Compound"
	case KindObject:
		return "Object"
	case KindOptionalObject:
		return "Object?"
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
	default:
		return "Unknown"
	}
}

// String renders a type for diagnostics/hover display: the kind name plus
// a trailing "?" when optional, matching WDL's own type syntax.
func (t Type) String() string {
	s := t.Kind.String()
	if t.Optional && !strings.HasSuffix(s, "?") {
		s += "?"
	}
	return s
}

func (k Kind) isPrimitive() bool {
	switch k {
	case KindBoolean, KindInt, KindFloat, KindString, KindFile, KindDirectory:
		return true
	default:
		return false
	}
}

func (k Kind) isHidden() bool {
	switch k {
	case KindTask, KindHints, KindInput, KindOutput:
		return true
	default:
		return false
	}
}

// DefID identifies an interned CompoundDef.
type DefID int

// Type is a WDL type value. For KindCompound, Def indexes into the owning
// Registry's interned compound definitions.
type Type struct {
	Kind     Kind
	Optional bool
	Def      DefID
}

// Primitive constructs a non-optional primitive type.
func Primitive(k Kind) Type {
	return Type{Kind: k}
}

// Opt returns t marked optional.
func (t Type) Opt() Type {
	t.Optional = true
	return t
}

// Req returns t marked non-optional.
func (t Type) Req() Type {
	t.Optional = false
	return t
}

// IsNone reports whether t is the None type, which coerces to any T?.
func (t Type) IsNone() bool { return t.Kind == KindNone }

// IsUnion reports whether t is the Union placeholder type, which satisfies
// every constraint and is deferred to runtime.
func (t Type) IsUnion() bool { return t.Kind == KindUnion }

// CompoundKind distinguishes the shape of a compound definition.
type CompoundKind int

const (
	CompoundArray CompoundKind = iota
	CompoundPair
	CompoundMap
	CompoundStruct
	CompoundCallOutput
)

// StructMember is one ordered (name, type) entry of a Struct or CallOutput
// compound definition.
type StructMember struct {
	Name string
	Type Type
}

// CompoundDef is the structural payload behind a KindCompound Type. Exactly
// one of the kind-specific fields is populated, selected by Kind.
type CompoundDef struct {
	Kind CompoundKind

	// Array
	Elem     Type
	NonEmpty bool

	// Pair
	Left  Type
	Right Type

	// Map
	Key   Type
	Value Type

	// Struct / CallOutput
	Name    string // empty for CallOutput
	Members []StructMember
}

func (d CompoundDef) structuralKey() string {
	switch d.Kind {
	case CompoundArray:
		ne := ""
		if d.NonEmpty {
			ne = "+"
		}
		return fmt.Sprintf("array(%s)%s", typeKey(d.Elem), ne)
	case CompoundPair:
		return fmt.Sprintf("pair(%s,%s)", typeKey(d.Left), typeKey(d.Right))
	case CompoundMap:
		return fmt.Sprintf("map(%s,%s)", typeKey(d.Key), typeKey(d.Value))
	case CompoundStruct:
		s := "struct " + d.Name + "{"
		for _, m := range d.Members {
			s += m.Name + ":" + typeKey(m.Type) + ";"
		}
		return s + "}"
	case CompoundCallOutput:
		s := "call{"
		for _, m := range d.Members {
			s += m.Name + ":" + typeKey(m.Type) + ";"
		}
		return s + "}"
	default:
		return "?"
	}
}

// typeKey renders a Type (without resolving compound member structure
// recursively through a registry) for use as part of a structural key. It is
// only safe to call on types whose Def, if any, has already been interned
// via the same registry the caller is working with.
func typeKey(t Type) string {
	opt := ""
	if t.Optional {
		opt = "?"
	}
	if t.Kind == KindCompound {
		return fmt.Sprintf("compound#%d%s", t.Def, opt)
	}
	return fmt.Sprintf("k%d%s", t.Kind, opt)
}
