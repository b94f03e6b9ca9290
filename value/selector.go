package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Selector is a message name together with its arity. Two selectors are the
// same message iff both fields match.
type Selector struct {
	Name  string
	Arity int
}

// ParseSelector derives the arity of a selector from its spelling: keyword
// selectors take one argument per colon, operator selectors take one, and
// identifiers take none.
func ParseSelector(name string) Selector {
	if n := strings.Count(name, ":"); n > 0 {
		return Selector{Name: name, Arity: n}
	}
	if name != "" && !isIdentStart(name[0]) {
		return Selector{Name: name, Arity: 1}
	}
	return Selector{Name: name, Arity: 0}
}

func (s Selector) String() string {
	return s.Name
}

// Label returns the mangled form of the selector used in procedure labels.
// Every byte that is not an ASCII letter or digit is written as _hh, so the
// mapping is injective.
func (s Selector) Label() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(s.Arity))
	sb.WriteByte('_')
	for i := 0; i < len(s.Name); i++ {
		c := s.Name[i]
		if isAlnum(c) {
			sb.WriteByte(c)
			continue
		}
		fmt.Fprintf(&sb, "_%02x", c)
	}
	return sb.String()
}

// DispatcherLabel names the dispatcher procedure for s.
func (s Selector) DispatcherLabel() string {
	return "message_" + s.Label()
}

// MethodLabel names the procedure implementing s for tag.
func (s Selector) MethodLabel(tag Tag) string {
	return fmt.Sprintf("method_%d_%s", tag, s.Label())
}

// Setter returns the one-argument writer selector for a slot name.
func Setter(name string) Selector {
	return Selector{Name: name + ":", Arity: 1}
}

// SetterSlot returns the slot name written by a setter selector.
func SetterSlot(s Selector) (string, bool) {
	if s.Arity != 1 || len(s.Name) < 2 || !strings.HasSuffix(s.Name, ":") {
		return "", false
	}
	name := s.Name[:len(s.Name)-1]
	if strings.Contains(name, ":") {
		return "", false
	}
	return name, true
}

// Getter returns the zero-argument reader selector for a slot name.
func Getter(name string) Selector {
	return Selector{Name: name, Arity: 0}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// SelectorTable interns selectors to dense numeric ids.
//
// The table is owned by one compilation unit and is not safe for concurrent
// use.
type SelectorTable struct {
	byKey map[Selector]int
	byID  []Selector
}

// NewSelectorTable creates a new empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{
		byKey: make(map[Selector]int),
		byID:  make([]Selector, 0, 64),
	}
}

// Intern returns the id for a selector, creating a new id if needed.
func (st *SelectorTable) Intern(s Selector) int {
	if id, ok := st.byKey[s]; ok {
		return id
	}
	id := len(st.byID)
	st.byKey[s] = id
	st.byID = append(st.byID, s)
	return id
}

// Lookup returns the id for a selector, or -1 if it was never interned.
func (st *SelectorTable) Lookup(s Selector) int {
	if id, ok := st.byKey[s]; ok {
		return id
	}
	return -1
}

// Selector returns the selector for an id.
func (st *SelectorTable) Selector(id int) (Selector, bool) {
	if id < 0 || id >= len(st.byID) {
		return Selector{}, false
	}
	return st.byID[id], true
}

// Len returns the number of interned selectors.
func (st *SelectorTable) Len() int {
	return len(st.byID)
}

// All returns all selectors in id order.
func (st *SelectorTable) All() []Selector {
	result := make([]Selector, len(st.byID))
	copy(result, st.byID)
	return result
}
