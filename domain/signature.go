package domain

import "strings"

// MaxSignatureArgs is the upper bound on a Function Signature's argument
// list (§3). A parse that would exceed it is rejected wholesale.
const MaxSignatureArgs = 16

// Signature is a parsed Function Signature (§3): a name, an ordered list
// of argument Value Types, and a return Value Type. Two signatures are
// equal iff every field matches.
type Signature struct {
	Name   string
	Args   []ValueKind
	Return ValueKind
}

// Equal reports whether s and o have the same name, argument list, and
// return kind.
func (s Signature) Equal(o Signature) bool {
	if s.Name != o.Name || s.Return != o.Return || len(s.Args) != len(o.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// Malformed reports whether s is the product of a failed parse (§4.1:
// parsing is total, malformed input yields a signature with return type
// == error).
func (s Signature) Malformed() bool {
	return s.Return == KindError
}

// String renders s back to its textual form, "name(t1;t2;...)ret". An
// empty argument list renders as "name()ret". This is the inverse of
// sig.Parse for every well-formed signature (§8 round-trip property).
func (s Signature) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, a := range s.Args {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(a.String())
	}
	b.WriteByte(')')
	b.WriteString(s.Return.String())
	return b.String()
}
