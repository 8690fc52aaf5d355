package schema

// Hold is a suppression scope for validation events or listener
// parameters. The zero value holds nothing; HoldAll holds everything;
// HoldOnly holds a named subset. Suppressed work is dropped, never
// queued.
type Hold struct {
	all   bool
	names map[string]struct{}
}

// HoldAll suppresses every event or parameter.
func HoldAll() Hold {
	return Hold{all: true}
}

// HoldOnly suppresses just the named events or parameters.
func HoldOnly(names ...string) Hold {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return Hold{names: set}
}

// Blocks reports whether the scope suppresses the given name.
func (h Hold) Blocks(name string) bool {
	if h.all {
		return true
	}
	_, ok := h.names[name]
	return ok
}

// Active reports whether the scope suppresses anything at all.
func (h Hold) Active() bool {
	return h.all || len(h.names) > 0
}

// Selective reports whether the scope names a subset rather than
// holding all or nothing.
func (h Hold) Selective() bool {
	return !h.all && len(h.names) > 0
}
