package object

import "fmt"

// Spot is the (line, col, module) of the instruction that raised or
// propagated an Exception.
type Spot struct {
	Line, Col int
	Module    string
}

// Exception is the run-time error value: `{value, traceback,
// spot}`, typed by its Value's prototype chain. It implements error so
// native Go code (env/vm) can return it directly as a Go error.
type Exception struct {
	Value     Object
	Traceback []string
	Spot      *Spot
}

func (e *Exception) Error() string {
	msg := e.Value.String()
	if e.Spot != nil {
		msg = fmt.Sprintf("%s (%s:%d:%d)", msg, e.Spot.Module, e.Spot.Line, e.Spot.Col)
	}
	return msg
}

// Kind returns the well-known exception kind name by walking Value's
// prototype chain and reading the conventional "__name__" field the RTE's
// well-known prototypes set (see rte package). Falls back to the Table's
// own field if present, else "Exception".
func (e *Exception) Kind() string {
	t, ok := e.Value.(*Table)
	if !ok {
		return "Exception"
	}
	seen := map[*Table]bool{}
	for cur := t; cur != nil && !seen[cur]; {
		seen[cur] = true
		if name, ok := cur.Get("__name__"); ok {
			if s, ok := name.(String); ok {
				return string(s)
			}
		}
		next, ok := cur.Prototype.(*Table)
		if !ok {
			break
		}
		cur = next
	}
	return "Exception"
}

// AppendTraceback records one unwound frame's (module, line, col,
// function-id) as the VM pops it.
func (e *Exception) AppendTraceback(entry string) {
	e.Traceback = append(e.Traceback, entry)
}
