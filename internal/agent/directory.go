package agent

import (
	"errors"
	"fmt"
	"sort"

	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

var (
	ErrDuplicateAgent = errors.New("agent: duplicate id")
	ErrUnknownAgent   = errors.New("agent: unknown id")
)

// Directory is the authoritative set of local entities plus read-only
// replicas of neighbour-owned entities. Replicas are grouped by the
// compartment that pushed them and are only ever replaced wholesale.
type Directory struct {
	local    map[ID]*Agent
	cells    map[grid.Point]map[ID]struct{}
	replicas map[tissue.Type][]Agent
	halo     map[grid.Point][]int // replica cell -> index into flat
	flat     []Agent
}

func NewDirectory() *Directory {
	return &Directory{
		local:    make(map[ID]*Agent),
		cells:    make(map[grid.Point]map[ID]struct{}),
		replicas: make(map[tissue.Type][]Agent),
		halo:     make(map[grid.Point][]int),
	}
}

func (d *Directory) Add(a Agent) error {
	if _, ok := d.local[a.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateAgent, a.ID)
	}
	stored := a
	d.local[a.ID] = &stored
	d.index(a.ID, a.Cell)
	return nil
}

func (d *Directory) Remove(id ID) (Agent, bool) {
	a, ok := d.local[id]
	if !ok {
		return Agent{}, false
	}
	d.unindex(id, a.Cell)
	delete(d.local, id)
	return *a, true
}

// Relocate updates the location and cell of a local entity.
func (d *Directory) Relocate(id ID, loc grid.Vector, cell grid.Point) error {
	a, ok := d.local[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	if a.Cell != cell {
		d.unindex(id, a.Cell)
		d.index(id, cell)
	}
	a.Location = loc
	a.Cell = cell
	return nil
}

// SetState updates the opaque state word of a local entity.
func (d *Directory) SetState(id ID, state int32) error {
	a, ok := d.local[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	a.State = state
	return nil
}

func (d *Directory) Get(id ID) (Agent, bool) {
	a, ok := d.local[id]
	if !ok {
		return Agent{}, false
	}
	return *a, true
}

func (d *Directory) IsLocal(id ID) bool {
	_, ok := d.local[id]
	return ok
}

func (d *Directory) Len() int { return len(d.local) }

// Local returns local entities matching mask, sorted by id.
func (d *Directory) Local(mask Kind) []Agent {
	out := make([]Agent, 0, len(d.local))
	for _, a := range d.local {
		if a.ID.Kind.Matches(mask) {
			out = append(out, *a)
		}
	}
	sortAgents(out)
	return out
}

// LocalAt returns local entities in cell matching mask, sorted by id.
func (d *Directory) LocalAt(cell grid.Point, mask Kind) []Agent {
	ids := d.cells[cell]
	out := make([]Agent, 0, len(ids))
	for id := range ids {
		if id.Kind.Matches(mask) {
			out = append(out, *d.local[id])
		}
	}
	sortAgents(out)
	return out
}

// Window returns local entities and replicas whose cell lies in r.
func (d *Directory) Window(r grid.Rect, mask Kind) []Agent {
	var out []Agent
	if r.Cells() <= len(d.local)+len(d.flat) {
		r.Each(func(p grid.Point) {
			for id := range d.cells[p] {
				if id.Kind.Matches(mask) {
					out = append(out, *d.local[id])
				}
			}
			for _, i := range d.halo[p] {
				if d.flat[i].ID.Kind.Matches(mask) {
					out = append(out, d.flat[i])
				}
			}
		})
	} else {
		for _, a := range d.local {
			if r.Contains(a.Cell) && a.ID.Kind.Matches(mask) {
				out = append(out, *a)
			}
		}
		for _, a := range d.flat {
			if r.Contains(a.Cell) && a.ID.Kind.Matches(mask) {
				out = append(out, a)
			}
		}
	}
	sortAgents(out)
	return out
}

// ReplaceReplicas overwrites every replica previously pushed by source.
func (d *Directory) ReplaceReplicas(source tissue.Type, agents []Agent) {
	if len(agents) == 0 {
		delete(d.replicas, source)
	} else {
		d.replicas[source] = append([]Agent(nil), agents...)
	}
	d.flat = d.flat[:0]
	d.halo = make(map[grid.Point][]int, len(d.halo))
	for _, t := range tissue.All() {
		for _, a := range d.replicas[t] {
			d.halo[a.Cell] = append(d.halo[a.Cell], len(d.flat))
			d.flat = append(d.flat, a)
		}
	}
}

// Replicas returns every replica, sorted by id.
func (d *Directory) Replicas() []Agent {
	out := append([]Agent(nil), d.flat...)
	sortAgents(out)
	return out
}

func (d *Directory) index(id ID, cell grid.Point) {
	set, ok := d.cells[cell]
	if !ok {
		set = make(map[ID]struct{})
		d.cells[cell] = set
	}
	set[id] = struct{}{}
}

func (d *Directory) unindex(id ID, cell grid.Point) {
	set := d.cells[cell]
	delete(set, id)
	if len(set) == 0 {
		delete(d.cells, cell)
	}
}

func sortAgents(a []Agent) {
	sort.Slice(a, func(i, j int) bool { return a[i].ID.Less(a[j].ID) })
}
