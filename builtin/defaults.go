package builtin

// ---------------------------------------------------------------------------
// Default environment
// ---------------------------------------------------------------------------

type definition struct {
	typeName string
	selector string
	flags    Flags
	sends    []string
}

var defaults = []definition{
	// Integer
	{"Integer", "+", 0, nil},
	{"Integer", "-", 0, nil},
	{"Integer", "*", 0, nil},
	{"Integer", "/", 0, nil},
	{"Integer", "\\\\", 0, nil},
	{"Integer", "<", 0, nil},
	{"Integer", ">", 0, nil},
	{"Integer", "<=", 0, nil},
	{"Integer", ">=", 0, nil},
	{"Integer", "=", Infallible, nil},
	{"Integer", "negated", 0, nil},
	{"Integer", "printString", Infallible, nil},
	{"Integer", "to:do:", 0, []string{"value:"}},

	// Decimal
	{"Decimal", "+", 0, nil},
	{"Decimal", "-", 0, nil},
	{"Decimal", "*", 0, nil},
	{"Decimal", "/", 0, nil},
	{"Decimal", "<", 0, nil},
	{"Decimal", "=", Infallible, nil},
	{"Decimal", "printString", Infallible, nil},

	// Boolean
	{"Boolean", "not", Infallible, nil},
	{"Boolean", "=", Infallible, nil},
	{"Boolean", "ifTrue:", 0, []string{"value"}},
	{"Boolean", "ifFalse:", 0, []string{"value"}},
	{"Boolean", "ifTrue:ifFalse:", 0, []string{"value"}},
	{"Boolean", "and:", 0, []string{"value"}},
	{"Boolean", "or:", 0, []string{"value"}},
	{"Boolean", "printString", Infallible, nil},

	// String
	{"String", "size", Infallible, nil},
	{"String", "=", Infallible, nil},
	{"String", "at:", 0, nil},
	{"String", "printString", Infallible, nil},

	// Array
	{"Array", "size", Infallible, nil},
	{"Array", "at:", 0, nil},
	{"Array", "at:put:", 0, nil},
	{"Array", "do:", 0, []string{"value:"}},
	{"Array", "printString", 0, []string{"printString"}},

	// Nil
	{"Nil", "isNil", Infallible, nil},
	{"Nil", "printString", Infallible, nil},

	// System
	{"System", "print:", Implicit, []string{"printString"}},
	{"System", "error:", Implicit, []string{"printString"}},
	{"System", "exit:", Implicit, nil},
}

// Default returns the registry of the standard runtime.
func Default() *Registry {
	r := NewRegistry()
	for _, d := range defaults {
		if err := r.Define(d.typeName, d.selector, d.flags, d.sends...); err != nil {
			// The table above is static; a failure here is a programming
			// error.
			panic(err)
		}
	}
	return r
}
