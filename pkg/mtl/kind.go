package mtl

import (
	"fmt"
	"strings"
)

// Kind is the operator tag of a node.
type Kind int

const (
	KindProposition Kind = iota
	KindAnd
	KindOr
	KindNot
	KindImplies
	KindEventually // past-time "once"
	KindAlways     // past-time "historically"
	KindSince
	KindSignal // output supplied by the caller before each step
)

var kindNames = [...]string{
	KindProposition: "proposition",
	KindAnd:         "and",
	KindOr:          "or",
	KindNot:         "not",
	KindImplies:     "implies",
	KindEventually:  "eventually",
	KindAlways:      "always",
	KindSince:       "since",
	KindSignal:      "signal",
}

// aliases accepted when parsing kinds from text
var kindAliases = map[string]Kind{
	"prop":         KindProposition,
	"once":         KindEventually,
	"historically": KindAlways,
	"input":        KindSignal,
}

func (k Kind) String() string {
	if !k.IsValid() {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsValid returns true for the known operator tags.
func (k Kind) IsValid() bool { return k >= KindProposition && k <= KindSignal }

// IsBinary returns true for operators reading both Left and Right.
func (k Kind) IsBinary() bool {
	return k == KindAnd || k == KindOr || k == KindImplies || k == KindSince
}

// IsUnary returns true for operators reading only Right.
func (k Kind) IsUnary() bool {
	return k == KindNot || k == KindEventually || k == KindAlways
}

// IsTemporal returns true for windowed operators that carry state across steps.
func (k Kind) IsTemporal() bool {
	return k == KindEventually || k == KindAlways || k == KindSince
}

// ParseKind converts an operator name into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	kind, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}
