package archive

// Predicate decides whether an archive entry is accepted.
type Predicate func(Entry) bool

// AcceptAll accepts every entry.
func AcceptAll() Predicate {
	return func(Entry) bool { return true }
}

// AcceptNone rejects every entry.
func AcceptNone() Predicate {
	return func(Entry) bool { return false }
}

// Or accepts an entry when any of the predicates accepts it.
func Or(predicates ...Predicate) Predicate {
	return func(e Entry) bool {
		for _, p := range predicates {
			if p != nil && p(e) {
				return true
			}
		}
		return false
	}
}

// And accepts an entry only when every predicate accepts it.
func And(predicates ...Predicate) Predicate {
	return func(e Entry) bool {
		for _, p := range predicates {
			if p != nil && !p(e) {
				return false
			}
		}
		return true
	}
}

// Not inverts a predicate.
func Not(p Predicate) Predicate {
	return func(e Entry) bool { return !p(e) }
}
