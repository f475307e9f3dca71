package realm

// ChangeKind describes a mutation reported to an Observer.
type ChangeKind int

const (
	ChangeSetting ChangeKind = iota
	ChangeInsertion
	ChangeRemoval
	ChangeReplacement
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSetting:
		return "setting"
	case ChangeInsertion:
		return "insertion"
	case ChangeRemoval:
		return "removal"
	case ChangeReplacement:
		return "replacement"
	}
	return "unknown"
}

// Change describes one mutation of a standalone object. Key is the property
// name. Indexes lists the affected collection indexes, in ascending order,
// and is empty for ChangeSetting.
type Change struct {
	Kind    ChangeKind
	Key     string
	Indexes []int
}

// Observer receives synchronous before/after notifications for mutations of
// a standalone object and its collections. Persisted objects do not notify.
type Observer interface {
	WillChange(c Change)
	DidChange(c Change)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Will func(Change)
	Did  func(Change)
}

func (f ObserverFuncs) WillChange(c Change) {
	if f.Will != nil {
		f.Will(c)
	}
}

func (f ObserverFuncs) DidChange(c Change) {
	if f.Did != nil {
		f.Did(c)
	}
}

// indexRange returns [start, start+n).
func indexRange(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}
