// Package tissue names the compartment types of the simulated tissue and the
// (rank, compartment) owner pair used to address a partition.
package tissue

import (
	"errors"
	"fmt"
	"strings"
)

// Type identifies one region type. Exactly one compartment of each type
// exists per process.
type Type int

// Invalid marks an unset compartment type.
const Invalid Type = -1

const (
	Lumen Type = iota
	Epithelium
	LaminaPropria
	GastricLymphNode
)

var ErrUnknownType = errors.New("tissue: unknown compartment type")

var names = [...]string{
	Lumen:            "lumen",
	Epithelium:       "epithelium",
	LaminaPropria:    "lamina_propria",
	GastricLymphNode: "gastric_lymph_node",
}

// All returns every valid type in ascending order.
func All() []Type {
	out := make([]Type, 0, len(names))
	for i := range names {
		out = append(out, Type(i))
	}
	return out
}

func (t Type) Valid() bool {
	return t >= 0 && int(t) < len(names)
}

func (t Type) String() string {
	if !t.Valid() {
		return "invalid"
	}
	return names[t]
}

// ParseType accepts the canonical names plus the historical "epithilium"
// spelling. Dashes and spaces are treated as underscores.
func ParseType(raw string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "epithilium":
		return Epithelium, nil
	case "lymph_node", "gln":
		return GastricLymphNode, nil
	}
	for i, name := range names {
		if name == key {
			return Type(i), nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnknownType, raw)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Owner addresses one partition: a rank inside a compartment's decomposition.
// Rank 2 of the lumen and rank 2 of the epithelium are different owners.
type Owner struct {
	Rank        int
	Compartment Type
}

func (o Owner) String() string {
	return fmt.Sprintf("%s@%d", o.Compartment, o.Rank)
}

// Less orders owners by compartment, then rank.
func (o Owner) Less(other Owner) bool {
	if o.Compartment != other.Compartment {
		return o.Compartment < other.Compartment
	}
	return o.Rank < other.Rank
}
