package value

// Built-in constant ids. User constant blocks are numbered from
// FirstUserConstant.
const (
	ConstNil = iota
	ConstSystem
	ConstNotUnderstood
	ConstOverflow
	ConstTypeMismatch
	ConstIndexOutOfRange
	ConstDivideByZero

	FirstUserConstant
)

// Nil is the nil constant.
var Nil = FromConstant(ConstNil)

var constantNames = [...]string{
	ConstNil:             "nil",
	ConstSystem:          "system",
	ConstNotUnderstood:   "notUnderstood",
	ConstOverflow:        "overflow",
	ConstTypeMismatch:    "typeMismatch",
	ConstIndexOutOfRange: "indexOutOfRange",
	ConstDivideByZero:    "divideByZero",
}

// ConstantName returns the name of a built-in constant, or "" for user
// constants.
func ConstantName(id int) string {
	if id >= 0 && id < len(constantNames) {
		return constantNames[id]
	}
	return ""
}

// PrimitiveTags maps the names used by the built-in environment to tags.
var PrimitiveTags = map[string]Tag{
	"Boolean": TagBoolean,
	"Integer": TagInteger,
	"Decimal": TagDecimal,
	"String":  TagString,
	"Array":   TagArray,
	"Nil":     ConstantTag(ConstNil),
	"System":  ConstantTag(ConstSystem),
}
