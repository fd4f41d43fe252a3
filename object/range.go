package object

// Range is a first-class, iterable value {a, b, step}; Null
// in any field means "open". Default step is Null, meaning 1.
type Range struct {
	A, B, Step Object
}

func NewRange(a, b, step Object) *Range {
	return &Range{A: a, B: b, Step: step}
}

func (r *Range) Type() Type { return TRange }
func (r *Range) String() string {
	s := Repr(r.A) + ".." + Repr(r.B)
	if r.Step != Null {
		s += ":" + Repr(r.Step)
	}
	return s
}

// StepOrDefault returns the integer step, defaulting Null to 1.
func (r *Range) StepOrDefault() int64 {
	if i, ok := r.Step.(Int); ok {
		return int64(i)
	}
	return 1
}
