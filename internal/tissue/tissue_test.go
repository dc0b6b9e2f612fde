package tissue

import (
	"errors"
	"testing"
)

func TestParseTypeAcceptsCanonicalAndAliasNames(t *testing.T) {
	cases := map[string]Type{
		"lumen":              Lumen,
		"Epithelium":         Epithelium,
		"epithilium":         Epithelium,
		"lamina-propria":     LaminaPropria,
		"gastric_lymph_node": GastricLymphNode,
		" gln ":              GastricLymphNode,
	}
	for raw, want := range cases {
		got, err := ParseType(raw)
		if err != nil {
			t.Fatalf("parse %q: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", raw, want, got)
		}
	}
}

func TestParseTypeRejectsUnknown(t *testing.T) {
	if _, err := ParseType("stomach"); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestTypeTextRoundTrip(t *testing.T) {
	for _, typ := range All() {
		b, err := typ.MarshalText()
		if err != nil {
			t.Fatalf("marshal %d: %v", typ, err)
		}
		var out Type
		if err := out.UnmarshalText(b); err != nil {
			t.Fatalf("unmarshal %q: %v", b, err)
		}
		if out != typ {
			t.Fatalf("expected %s, got %s", typ, out)
		}
	}
	if _, err := Invalid.MarshalText(); err == nil {
		t.Fatalf("expected error marshaling invalid type")
	}
}

func TestOwnerOrdering(t *testing.T) {
	a := Owner{Rank: 3, Compartment: Lumen}
	b := Owner{Rank: 0, Compartment: Epithelium}
	c := Owner{Rank: 1, Compartment: Epithelium}
	if !a.Less(b) || !b.Less(c) || c.Less(a) {
		t.Fatalf("unexpected ordering: %s %s %s", a, b, c)
	}
	if b.String() != "epithelium@0" {
		t.Fatalf("unexpected owner string %q", b.String())
	}
}
