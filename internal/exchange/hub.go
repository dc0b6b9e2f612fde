package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/meghna-verma/ENISI-MSM-control/internal/protocol/frame"
)

// Hub is an in-process barrier shared by ranks running as goroutines. Every
// envelope still goes through the wire codec.
type Hub struct {
	size   int
	limits frame.Limits

	mu    sync.Mutex
	round *hubRound
}

type hubRound struct {
	tag     Tag
	arrived []bool
	count   int
	frames  [][][]byte // [to][from]
	err     error
	done    chan struct{}
}

func NewHub(size int) *Hub {
	return &Hub{size: size, limits: frame.DefaultLimits()}
}

func (h *Hub) Size() int { return h.size }

// Endpoint returns the transport used by rank.
func (h *Hub) Endpoint(rank int) Transport {
	return &hubEndpoint{hub: h, rank: rank}
}

func (h *Hub) newRound(tag Tag) *hubRound {
	r := &hubRound{
		tag:     tag,
		arrived: make([]bool, h.size),
		frames:  make([][][]byte, h.size),
		done:    make(chan struct{}),
	}
	for i := range r.frames {
		r.frames[i] = make([][]byte, h.size)
	}
	return r
}

type hubEndpoint struct {
	hub  *Hub
	rank int
}

func (e *hubEndpoint) Rank() int    { return e.rank }
func (e *hubEndpoint) Size() int    { return e.hub.size }
func (e *hubEndpoint) Close() error { return nil }

func (e *hubEndpoint) Exchange(ctx context.Context, tag Tag, out map[int]Envelope) ([]Envelope, error) {
	h := e.hub
	if err := checkPeers(h.size, out); err != nil {
		return nil, err
	}
	encoded := make(map[int][]byte, len(out))
	for to, env := range out {
		env.Tag = tag
		env.From = e.rank
		b, err := Marshal(env, h.limits)
		if err != nil {
			return nil, fmt.Errorf("exchange: encode for rank %d: %w", to, err)
		}
		encoded[to] = b
	}

	h.mu.Lock()
	r := h.round
	if r == nil || r.count == h.size {
		r = h.newRound(tag)
		h.round = r
	}
	if r.arrived[e.rank] {
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: rank %d entered round %s twice", ErrRoundMismatch, e.rank, r.tag)
	}
	if r.tag != tag && r.err == nil {
		r.err = fmt.Errorf("%w: rank %d sent %s during %s", ErrRoundMismatch, e.rank, tag, r.tag)
	}
	r.arrived[e.rank] = true
	for to, b := range encoded {
		r.frames[to][e.rank] = b
	}
	r.count++
	if r.count == h.size {
		close(r.done)
	}
	h.mu.Unlock()

	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}

	in := make([]Envelope, h.size)
	for from := 0; from < h.size; from++ {
		b := r.frames[e.rank][from]
		if b == nil {
			in[from] = Envelope{Tag: tag, From: from}
			continue
		}
		env, err := Unmarshal(b, h.limits)
		if err != nil {
			return nil, fmt.Errorf("exchange: decode from rank %d: %w", from, err)
		}
		in[from] = env
	}
	return in, nil
}
