package vm

// Symbol is a unique property key. Identity is the pointer.
type Symbol struct {
	Description    string
	HasDescription bool
}

func NewSymbol(description string) *Symbol {
	return &Symbol{Description: description, HasDescription: true}
}

func (s *Symbol) String() string {
	return "Symbol(" + s.Description + ")"
}

// Well-known symbols shared by every realm.
var (
	SymbolIterator           = NewSymbol("Symbol.iterator")
	SymbolAsyncIterator      = NewSymbol("Symbol.asyncIterator")
	SymbolIsConcatSpreadable = NewSymbol("Symbol.isConcatSpreadable")
	SymbolSpecies            = NewSymbol("Symbol.species")
	SymbolToPrimitive        = NewSymbol("Symbol.toPrimitive")
	SymbolToStringTag        = NewSymbol("Symbol.toStringTag")
	SymbolUnscopables        = NewSymbol("Symbol.unscopables")
	SymbolHasInstance        = NewSymbol("Symbol.hasInstance")
)

// WellKnownSymbols maps the Symbol constructor property names to the symbols.
var WellKnownSymbols = map[string]*Symbol{
	"iterator":           SymbolIterator,
	"asyncIterator":      SymbolAsyncIterator,
	"isConcatSpreadable": SymbolIsConcatSpreadable,
	"species":            SymbolSpecies,
	"toPrimitive":        SymbolToPrimitive,
	"toStringTag":        SymbolToStringTag,
	"unscopables":        SymbolUnscopables,
	"hasInstance":        SymbolHasInstance,
}

// SymbolFor implements the Symbol.for registry lookup.
func (vm *VM) SymbolFor(key string) *Symbol {
	if sym, ok := vm.symbolRegistry[key]; ok {
		return sym
	}
	sym := NewSymbol(key)
	vm.symbolRegistry[key] = sym
	vm.registeredSymbols[sym] = key
	return sym
}

// SymbolKeyFor returns the registry key of a registered symbol.
func (vm *VM) SymbolKeyFor(sym *Symbol) (string, bool) {
	key, ok := vm.registeredSymbols[sym]
	return key, ok
}

// CanBeHeldWeakly reports whether v may be a WeakMap key or WeakSet member.
func (vm *VM) CanBeHeldWeakly(v Value) bool {
	if v.IsObject() {
		return true
	}
	if v.IsSymbol() {
		_, registered := vm.registeredSymbols[v.AsSymbol()]
		return !registered
	}
	return false
}
