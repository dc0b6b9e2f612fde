// Package exchange moves per-rank push sets between the ranks of a run. Every
// call to Transport.Exchange is a barrier: it returns once each rank has
// contributed its envelopes for the same round.
package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var (
	ErrRoundMismatch = errors.New("exchange: round mismatch")
	ErrUnknownPeer   = errors.New("exchange: unknown peer rank")
	ErrClosed        = errors.New("exchange: transport closed")
)

// PayloadKind separates entity rounds from field value rounds.
type PayloadKind uint32

const (
	KindHello PayloadKind = iota
	KindCells
	KindValues
)

func (k PayloadKind) String() string {
	switch k {
	case KindHello:
		return "hello"
	case KindCells:
		return "cells"
	case KindValues:
		return "values"
	default:
		return fmt.Sprintf("kind(%d)", uint32(k))
	}
}

// Tag identifies one barrier round. All ranks must exchange with the same tag.
type Tag struct {
	Step   uint64
	Kind   PayloadKind
	Source tissue.Type
}

func (t Tag) String() string {
	return fmt.Sprintf("%s/%s/%d", t.Source, t.Kind, t.Step)
}

// AgentPackage carries one entity. Location is in the frame of Dest. Migrate
// hands ownership to the receiver; otherwise the package is a replica.
type AgentPackage struct {
	ID       agent.ID
	State    int32
	Location grid.Vector
	Dest     tissue.Type
	Migrate  bool
}

// ValuePackage carries the named concentrations of one border cell, with
// Cell in the frame of Dest.
type ValuePackage struct {
	Dest   tissue.Type
	Cell   grid.Point
	Names  []string
	Values []float64
}

// Envelope is everything one rank sends another in one round.
type Envelope struct {
	Tag    Tag
	From   int
	Agents []AgentPackage
	Values []ValuePackage
}

// Transport performs the barrier exchange. out is keyed by destination rank
// and may include the caller's own rank. The result holds one envelope per
// rank, ordered by From; ranks that sent nothing yield an empty envelope.
type Transport interface {
	Rank() int
	Size() int
	Exchange(ctx context.Context, tag Tag, out map[int]Envelope) ([]Envelope, error)
	Close() error
}

func checkPeers(size int, out map[int]Envelope) error {
	for to := range out {
		if to < 0 || to >= size {
			return fmt.Errorf("%w: %d of %d", ErrUnknownPeer, to, size)
		}
	}
	return nil
}
