package wdltype

// Coercible reports whether a value of type a can be used where type b is
// expected. The rules are pure functions of the registry and the two types.
func (r *Registry) Coercible(a, b Type) bool {
	if r.Equiv(a, b) {
		return true
	}

	// None coerces to any optional type.
	if a.IsNone() {
		return b.Optional
	}

	// Union is runtime-deferred and satisfies any expectation.
	if a.IsUnion() || b.IsUnion() {
		return true
	}

	// A required value coerces to the optional flavor of a coercible type,
	// but T? never coerces to T.
	if a.Optional && !b.Optional {
		return false
	}

	aReq, bReq := a.Req(), b.Req()

	if aReq.Kind != KindCompound && bReq.Kind != KindCompound {
		switch {
		case aReq.Kind == bReq.Kind:
			return true
		case aReq.Kind == KindInt && bReq.Kind == KindFloat:
			return true
		case aReq.Kind == KindString && (bReq.Kind == KindFile || bReq.Kind == KindDirectory):
			return true
		case (aReq.Kind == KindFile || aReq.Kind == KindDirectory) && bReq.Kind == KindString:
			return true
		default:
			return false
		}
	}

	if aReq.Kind != KindCompound || bReq.Kind != KindCompound {
		return false
	}

	adef, ok1 := r.Lookup(aReq.Def)
	bdef, ok2 := r.Lookup(bReq.Def)
	if !ok1 || !ok2 || adef.Kind != bdef.Kind {
		return false
	}

	switch adef.Kind {
	case CompoundArray:
		if !r.Coercible(adef.Elem, bdef.Elem) {
			return false
		}
		// Array[A]+ coerces to Array[A]; Array[A] does not coerce to Array[A]+.
		if !adef.NonEmpty && bdef.NonEmpty {
			return false
		}
		return true
	case CompoundPair:
		return r.Coercible(adef.Left, bdef.Left) && r.Coercible(adef.Right, bdef.Right)
	case CompoundMap:
		return r.Coercible(adef.Key, bdef.Key) && r.Coercible(adef.Value, bdef.Value)
	case CompoundStruct, CompoundCallOutput:
		return r.membersCoercible(adef.Members, bdef.Members)
	}
	return false
}

// membersCoercible checks struct/call-output member coercion member-wise by
// name: every member required by b must be present and coercible in a,
// unless it is optional in b and simply missing from a.
func (r *Registry) membersCoercible(from, to []StructMember) bool {
	byName := make(map[string]Type, len(from))
	for _, m := range from {
		byName[m.Name] = m.Type
	}
	for _, want := range to {
		got, ok := byName[want.Name]
		if !ok {
			if want.Type.Optional {
				continue
			}
			return false
		}
		if !r.Coercible(got, want.Type) {
			return false
		}
	}
	return true
}

// Equiv reports structural equality of a and b modulo interning.
func (r *Registry) Equiv(a, b Type) bool {
	if a.Kind != b.Kind || a.Optional != b.Optional {
		return false
	}
	if a.Kind != KindCompound {
		return true
	}
	// Compound types interned by the same registry share a DefID when
	// structurally equal, so direct comparison suffices for types built
	// through this registry's constructors.
	if a.Def == b.Def {
		return true
	}
	adef, ok1 := r.Lookup(a.Def)
	bdef, ok2 := r.Lookup(b.Def)
	if !ok1 || !ok2 {
		return false
	}
	return adef.structuralKey() == bdef.structuralKey()
}
