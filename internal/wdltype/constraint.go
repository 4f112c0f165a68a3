package wdltype

// Constraint is a named predicate used by stdlib function signatures to
// restrict which types a parameter accepts.
type Constraint int

const (
	ConstraintOptional Constraint = iota
	ConstraintAnyPrimitive
	ConstraintRequiredPrimitive
	ConstraintSizable
	ConstraintStruct
	ConstraintJSONSerializable
)

// Satisfies reports whether t meets constraint c. Union always satisfies
// every constraint because its concrete type is only known at runtime.
func (r *Registry) Satisfies(c Constraint, t Type) bool {
	if t.IsUnion() {
		return true
	}
	switch c {
	case ConstraintOptional:
		return t.Optional
	case ConstraintAnyPrimitive:
		return t.Kind.isPrimitive()
	case ConstraintRequiredPrimitive:
		return t.Kind.isPrimitive() && !t.Optional
	case ConstraintSizable:
		return r.sizable(t, make(map[DefID]bool))
	case ConstraintStruct:
		if t.Kind != KindCompound {
			return false
		}
		def, ok := r.Lookup(t.Def)
		return ok && def.Kind == CompoundStruct
	case ConstraintJSONSerializable:
		return r.jsonSerializable(t, make(map[DefID]bool))
	default:
		return false
	}
}

// sizable reports whether t recursively contains a File or Directory,
// directly or through Array/Map/Pair/Struct members.
func (r *Registry) sizable(t Type, seen map[DefID]bool) bool {
	switch t.Kind {
	case KindFile, KindDirectory:
		return true
	case KindUnion:
		return true
	case KindCompound:
		if seen[t.Def] {
			return false
		}
		seen[t.Def] = true
		def, ok := r.Lookup(t.Def)
		if !ok {
			return false
		}
		switch def.Kind {
		case CompoundArray:
			return r.sizable(def.Elem, seen)
		case CompoundPair:
			return r.sizable(def.Left, seen) || r.sizable(def.Right, seen)
		case CompoundMap:
			return r.sizable(def.Key, seen) || r.sizable(def.Value, seen)
		case CompoundStruct, CompoundCallOutput:
			for _, m := range def.Members {
				if r.sizable(m.Type, seen) {
					return true
				}
			}
		}
	}
	return false
}

// jsonSerializable rejects Pair anywhere in the type, requires non-optional
// String map keys, and recurses into struct members.
func (r *Registry) jsonSerializable(t Type, seen map[DefID]bool) bool {
	switch t.Kind {
	case KindBoolean, KindInt, KindFloat, KindString, KindFile, KindDirectory,
		KindObject, KindOptionalObject, KindNone, KindUnion:
		return true
	case KindCompound:
		if seen[t.Def] {
			return true
		}
		seen[t.Def] = true
		def, ok := r.Lookup(t.Def)
		if !ok {
			return false
		}
		switch def.Kind {
		case CompoundPair:
			return false
		case CompoundArray:
			return r.jsonSerializable(def.Elem, seen)
		case CompoundMap:
			if def.Key.Optional || def.Key.Kind != KindString {
				return false
			}
			return r.jsonSerializable(def.Value, seen)
		case CompoundStruct, CompoundCallOutput:
			for _, m := range def.Members {
				if !r.jsonSerializable(m.Type, seen) {
					return false
				}
			}
			return true
		}
	}
	return false
}
