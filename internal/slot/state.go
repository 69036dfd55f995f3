package slot

// State is the lifecycle position of one slot instance.
type State string

const (
	StateLoading  State = "LOADING"
	StateEmpty    State = "EMPTY"
	StateRendered State = "RENDERED"
	StateExposed  State = "EXPOSED"
)

// Clickable reports whether clicks are honoured in s.
func (s State) Clickable() bool {
	return s == StateRendered || s == StateExposed
}

// Terminal reports whether no further content transition can happen from s.
// EXPOSED is terminal for exposure; EMPTY is terminal for the mount.
func (s State) Terminal() bool {
	return s == StateEmpty || s == StateExposed
}
