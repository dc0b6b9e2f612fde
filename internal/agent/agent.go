// Package agent defines mobile entities, their distributed identity, and the
// per-compartment directory that indexes them by id and by cell.
package agent

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var ErrUnknownKind = errors.New("agent: unknown kind")

// Kind is a bit flag so queries can filter on several kinds at once.
type Kind uint32

const (
	HPylori Kind = 1 << iota
	Bacteria
	TCell
	Macrophage
	Dendritic
	Epithelial
)

// AnyKind matches every kind in a filter.
const AnyKind Kind = 0

var kindNames = []struct {
	kind Kind
	name string
}{
	{HPylori, "hpylori"},
	{Bacteria, "bacteria"},
	{TCell, "tcell"},
	{Macrophage, "macrophage"},
	{Dendritic, "dendritic"},
	{Epithelial, "epithelial"},
}

// Matches reports whether k passes the filter mask.
func (k Kind) Matches(mask Kind) bool {
	return mask == AnyKind || k&mask != 0
}

func (k Kind) String() string {
	if k == AnyKind {
		return "any"
	}
	parts := make([]string, 0, bits.OnesCount32(uint32(k)))
	for _, kn := range kindNames {
		if k&kn.kind != 0 {
			parts = append(parts, kn.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("kind(%#x)", uint32(k))
	}
	return strings.Join(parts, "|")
}

// ParseKind accepts one name or several joined by '|'.
func ParseKind(raw string) (Kind, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "any" {
		return AnyKind, nil
	}
	var out Kind
	for _, part := range strings.Split(raw, "|") {
		part = strings.TrimSpace(part)
		matched := false
		for _, kn := range kindNames {
			if kn.name == part {
				out |= kn.kind
				matched = true
				break
			}
		}
		if !matched {
			return AnyKind, fmt.Errorf("%w: %q", ErrUnknownKind, part)
		}
	}
	return out, nil
}

// ID is unique across the distributed domain: a serial minted by the rank
// that created the entity, tagged with its kind.
type ID struct {
	Serial    uint64
	StartRank int32
	Kind      Kind
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%d:%d", id.Kind, id.StartRank, id.Serial)
}

func (id ID) Less(o ID) bool {
	if id.Kind != o.Kind {
		return id.Kind < o.Kind
	}
	if id.StartRank != o.StartRank {
		return id.StartRank < o.StartRank
	}
	return id.Serial < o.Serial
}

// Agent is one mobile entity. Cell is always derived from Location through
// the owning compartment's transform.
type Agent struct {
	ID       ID
	State    int32
	Location grid.Vector
	Cell     grid.Point
}

// Minter issues ids for one rank. It is not safe for concurrent use.
type Minter struct {
	rank int32
	next uint64
}

func NewMinter(rank int) *Minter {
	return &Minter{rank: int32(rank)}
}

func (m *Minter) Next(kind Kind) ID {
	m.next++
	return ID{Serial: m.next, StartRank: m.rank, Kind: kind}
}

// Outcome classifies a validated move.
type Outcome int

const (
	// Moved means the entity stays local at its new location.
	Moved Outcome = iota
	// Transfer means another rank or compartment owns the destination. The
	// entity keeps its prior location until the next cell synchronization.
	Transfer
	// Absorbed means an absorbing border consumed the entity.
	Absorbed
)

func (o Outcome) String() string {
	switch o {
	case Moved:
		return "moved"
	case Transfer:
		return "transfer"
	case Absorbed:
		return "absorbed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Move is the result of a movement request. Location and Cell are expressed
// in the frame of the To compartment.
type Move struct {
	Outcome  Outcome
	From     tissue.Owner
	To       tissue.Owner
	Location grid.Vector
	Cell     grid.Point
}
