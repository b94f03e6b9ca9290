package value

import "fmt"

// Value is a runtime value word as seen by generated code.
//
// Encoding scheme (64 bits):
//   - bits 63..48: tag
//   - bit 47:      error flag
//   - bits 46..0:  data (47 bits)
//
// Tags 0..255 are primitive kinds that never live on the heap. Tags from 256
// up identify heap shapes (strings, arrays, block instances). Constants are
// encoded with the primitive TagConstant and their constant id in the data
// field; dispatch remaps them into the constant sub-range of the tag space.
type Value uint64

// Tag is a runtime shape identifier and the dispatch key.
type Tag uint16

// Bit layout
const (
	TagBits  = 16
	TagShift = 48
	DataBits = 47
	errorBit = uint64(1) << 47
	dataMask = errorBit - 1
	dataSign = uint64(1) << (DataBits - 1)
)

// Primitive tags
const (
	TagBoolean  Tag = 0
	TagConstant Tag = 1
	TagInteger  Tag = 2
	TagDecimal  Tag = 3

	// MaxPrimitiveTag is the last tag that never denotes a heap object.
	MaxPrimitiveTag Tag = 255
)

// Heap tags
const (
	TagString Tag = 256
	TagArray  Tag = 257

	// FirstBlockTag is the first tag handed out to user blocks.
	FirstBlockTag Tag = 258
)

// Constant sub-range
const (
	// ConstantBase is the dispatch tag of constant id 0.
	ConstantBase Tag = 0xC000

	// ReservedTag is never allocated: negative small integers sign-extend
	// into it.
	ReservedTag Tag = 0xFFFF

	// MaxTag is the largest tag a dispatcher can observe.
	MaxTag Tag = ReservedTag - 1

	// MaxBlockTag is the largest tag that can be given to a user block.
	MaxBlockTag Tag = ConstantBase - 1

	// MaxConstantID is the largest constant id that still maps below the
	// reserved tag.
	MaxConstantID = int(MaxTag - ConstantBase)
)

// Small integer range (47-bit signed)
const (
	MaxInt int64 = (1 << (DataBits - 1)) - 1
	MinInt int64 = -(1 << (DataBits - 1))
)

// Pre-defined values
const (
	False Value = Value(uint64(TagBoolean) << TagShift)
	True  Value = Value(uint64(TagBoolean)<<TagShift | 1)
)

// Make packs a tag and a data field into a word.
func Make(tag Tag, data uint64) Value {
	return Value(uint64(tag)<<TagShift | (data & dataMask))
}

// Tag returns the tag field.
func (v Value) Tag() Tag {
	return Tag(uint64(v) >> TagShift)
}

// Data returns the raw data field, without the error flag.
func (v Value) Data() uint64 {
	return uint64(v) & dataMask
}

// IsError reports whether the error flag is set.
func (v Value) IsError() bool {
	return uint64(v)&errorBit != 0
}

// IsHeap reports whether v refers to a heap-allocated shape.
func (v Value) IsHeap() bool {
	return v.Tag() > MaxPrimitiveTag && v.Tag() < ConstantBase
}

// IsConstant reports whether v is a constant singleton.
func (v Value) IsConstant() bool {
	return v.Tag() == TagConstant
}

// FromBool returns True or False.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromInt encodes a small integer. The caller must have checked the range.
func FromInt(n int64) Value {
	return Make(TagInteger, uint64(n))
}

// Int decodes a small integer, sign-extending the data field.
func (v Value) Int() int64 {
	d := v.Data()
	if d&dataSign != 0 {
		d |= ^dataMask
	}
	return int64(d)
}

// FromConstant encodes the constant with the given id.
func FromConstant(id int) Value {
	return Make(TagConstant, uint64(id))
}

// ConstantID returns the constant id of a constant value.
func (v Value) ConstantID() int {
	return int(v.Data())
}

// ErrorValue returns the failure word carrying constant id as payload.
func ErrorValue(id int) Value {
	return Value(uint64(FromConstant(id)) | errorBit)
}

// DispatchTag returns the tag a dispatcher searches on. Constants are
// remapped into the constant sub-range.
func (v Value) DispatchTag() Tag {
	if v.Tag() == TagConstant {
		return ConstantBase + Tag(v.Data())
	}
	return v.Tag()
}

// ConstantTag returns the dispatch tag of a constant id.
func ConstantTag(id int) Tag {
	return ConstantBase + Tag(id)
}

// IsConstantTag reports whether t lies in the constant sub-range.
func IsConstantTag(t Tag) bool {
	return t >= ConstantBase && t <= MaxTag
}

// String renders a value for listings and diagnostics.
func (v Value) String() string {
	if v.IsError() {
		return fmt.Sprintf("error(%d)", v.ConstantID())
	}
	switch v.Tag() {
	case TagBoolean:
		if v == True {
			return "true"
		}
		return "false"
	case TagInteger:
		return fmt.Sprintf("%d", v.Int())
	case TagDecimal:
		s, e := v.Decimal()
		return fmt.Sprintf("%de%d", s, e)
	case TagConstant:
		return fmt.Sprintf("const(%d)", v.ConstantID())
	}
	return fmt.Sprintf("0x%016x", uint64(v))
}
