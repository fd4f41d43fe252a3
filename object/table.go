package object

// Table is a shared record {prototype, map}. Prototype chains
// terminate at Null; a prototype may also be a *List* of prototypes,
// searched in turn, to represent multiple inheritance without deep
// host-language inheritance.
type Table struct {
	Prototype Object // Null, *Table, or *List of prototypes
	Fields    *Map
	Frozen    bool
}

func NewTable(proto Object) *Table {
	if proto == nil {
		proto = Null
	}
	return &Table{Prototype: proto, Fields: NewMap()}
}

func (t *Table) Type() Type     { return TTable }
func (t *Table) String() string { return "table" }

// Get looks up name directly on the table (not walking the prototype
// chain); callers needing overload/attribute resolution use
// LookupPrototypeChain instead.
func (t *Table) Get(name string) (Object, bool) {
	return t.Fields.Get(String(name))
}

func (t *Table) Set(name string, v Object) error {
	if t.Frozen {
		return FrozenError{}
	}
	return t.Fields.Set(String(name), v)
}

// LookupPrototypeChain walks t's own fields, then its prototype chain
// (a list-valued prototype is searched element by element), returning
// the value bound to name in the first table that defines it directly,
// and whether any table did.
func LookupPrototypeChain(start Object, name string) (Object, bool) {
	seen := map[*Table]bool{}
	var walk func(o Object) (Object, bool)
	walk = func(o Object) (Object, bool) {
		switch v := o.(type) {
		case *Table:
			if seen[v] {
				return nil, false
			}
			seen[v] = true
			if val, ok := v.Get(name); ok {
				return val, true
			}
			return walk(v.Prototype)
		case *List:
			for _, proto := range v.Elems {
				if val, ok := walk(proto); ok {
					return val, true
				}
			}
			return nil, false
		default:
			return nil, false
		}
	}
	return walk(start)
}

// Operator-overload key names consulted in a Table's prototype chain
// ("add", "radd", "sub", "rsub", ...). Plain Go string constants serve as
// the interned keys: the compiler's own constant pool already interns
// every string literal it emits, so there is nothing further to intern
// at this layer.
const (
	OpAdd      = "add"
	OpRAdd     = "radd"
	OpSub      = "sub"
	OpRSub     = "rsub"
	OpMul      = "mul"
	OpRMul     = "rmul"
	OpDiv      = "div"
	OpRDiv     = "rdiv"
	OpIdiv     = "idiv"
	OpRIdiv    = "ridiv"
	OpMod      = "mod"
	OpRMod     = "rmod"
	OpPow      = "pow"
	OpRPow     = "rpow"
	OpBAnd     = "band"
	OpBOr      = "bor"
	OpNeg      = "neg"
	OpAbs      = "abs"
	OpLt       = "lt"
	OpLe       = "le"
	OpGt       = "gt"
	OpGe       = "ge"
	OpEq       = "eq"
	OpIndex    = "index"
	OpSetIndex = "set_index"
	OpGet      = "get"
	OpToString = "to_string"
	OpIter     = "iter"
	OpHash     = "hash"
)
