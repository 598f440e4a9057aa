// Package sig implements the textual Function Signature grammar (§4.1):
//
//	name(t1;t2;...)ret
//
// Parsing is total and pure: it never panics and never consults kernel
// state, and malformed input always produces a domain.Signature whose
// Return field is domain.KindError rather than an error return. This
// mirrors how the original C sources treat signature parsing as a
// leaf-level, side-effect-free utility (muil/src/muil/lexer.c plays the
// same role for the DSL lexer, one layer up, and is likewise free of any
// kernel dependency).
package sig

import (
	"strings"

	"github.com/mrmaniac/vos/domain"
)

func malformed(name string) domain.Signature {
	return domain.Signature{Name: name, Return: domain.KindError}
}

// Parse parses text into a domain.Signature. It never fails loudly: on
// malformed input it returns a signature with Return == domain.KindError
// (§4.1, §8).
func Parse(text string) domain.Signature {
	s := strings.TrimSpace(text)

	open := strings.IndexByte(s, '(')
	if open <= 0 {
		// No '(' at all, or an empty name before it.
		return malformed(s)
	}
	name := s[:open]
	if !validName(name) {
		return malformed(name)
	}

	close := strings.IndexByte(s[open:], ')')
	if close < 0 {
		return malformed(name)
	}
	close += open

	argsStr := s[open+1 : close]
	retStr := strings.TrimSpace(s[close+1:])

	var args []domain.ValueKind
	if argsStr != "" {
		parts := strings.Split(argsStr, ";")
		if len(parts) > domain.MaxSignatureArgs {
			return malformed(name)
		}
		args = make([]domain.ValueKind, 0, len(parts))
		for _, p := range parts {
			kind, ok := domain.ValueKindFromToken(strings.TrimSpace(p))
			if !ok {
				return malformed(name)
			}
			args = append(args, kind)
		}
	}

	ret := domain.KindVoid
	if retStr != "" {
		kind, ok := domain.ValueKindFromToken(retStr)
		if !ok {
			return malformed(name)
		}
		ret = kind
	}

	return domain.Signature{Name: name, Args: args, Return: ret}
}

// validName reports whether name is a non-empty identifier: starts with
// a letter or underscore, followed by letters, digits, or underscores.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
		isDigit := r >= '0' && r <= '9'
		if i == 0 {
			if !isAlpha {
				return false
			}
			continue
		}
		if !isAlpha && !isDigit {
			return false
		}
	}
	return true
}
