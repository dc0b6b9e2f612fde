package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/protocol/frame"
	"github.com/meghna-verma/ENISI-MSM-control/internal/testutil/testlog"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

func sampleEnvelope() Envelope {
	return Envelope{
		Tag:  Tag{Step: 9, Kind: KindCells, Source: tissue.Epithelium},
		From: 2,
		Agents: []AgentPackage{
			{ID: agent.ID{Serial: 7, StartRank: 1, Kind: agent.TCell}, State: 3, Location: grid.Vector{-0.5, 4.25}, Dest: tissue.Lumen},
			{ID: agent.ID{Serial: 8, StartRank: 2, Kind: agent.HPylori}, Location: grid.Vector{1, 1}, Dest: tissue.Epithelium, Migrate: true},
		},
		Values: []ValuePackage{
			{Dest: tissue.Lumen, Cell: grid.Point{-1, 3}, Names: []string{"IL6", "TNFa"}, Values: []float64{0.5, 2}},
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	testlog.Start(t)
	in := sampleEnvelope()
	b, err := Marshal(in, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	out, err := Unmarshal(b, frame.DefaultLimits())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Fatalf("round trip mismatch:\n got=%+v\nwant=%+v", out, in)
	}
}

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

// runRound drives one Exchange per transport and returns inbound by rank.
func runRound(t *testing.T, transports []Transport, tag Tag, build func(rank int) map[int]Envelope) [][]Envelope {
	t.Helper()
	results := make([][]Envelope, len(transports))
	g, ctx := errgroup.WithContext(context.Background())
	for i, tr := range transports {
		g.Go(func() error {
			in, err := tr.Exchange(ctx, tag, build(i))
			results[i] = in
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("exchange %s: %v", tag, err)
	}
	return results
}

func ringPayload(size int) func(rank int) map[int]Envelope {
	return func(rank int) map[int]Envelope {
		next := (rank + 1) % size
		return map[int]Envelope{
			next: {Values: []ValuePackage{{Dest: tissue.Lumen, Cell: grid.Point{rank, 0}, Names: []string{"IL6"}, Values: []float64{float64(rank)}}}},
		}
	}
}

func checkRing(t *testing.T, results [][]Envelope, tag Tag) {
	t.Helper()
	size := len(results)
	for rank, in := range results {
		if len(in) != size {
			t.Fatalf("rank %d: expected %d envelopes, got %d", rank, size, len(in))
		}
		prev := (rank + size - 1) % size
		for from, env := range in {
			if env.From != from || env.Tag != tag {
				t.Fatalf("rank %d: envelope %d has from=%d tag=%s", rank, from, env.From, env.Tag)
			}
			if from == prev {
				if len(env.Values) != 1 || env.Values[0].Values[0] != float64(prev) {
					t.Fatalf("rank %d: expected value from %d, got %+v", rank, prev, env.Values)
				}
			} else if len(env.Values) != 0 {
				t.Fatalf("rank %d: unexpected values from %d: %+v", rank, from, env.Values)
			}
		}
	}
}

func TestHubBarrierDeliversAcrossRounds(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(3)
	transports := []Transport{hub.Endpoint(0), hub.Endpoint(1), hub.Endpoint(2)}
	for step := uint64(1); step <= 3; step++ {
		tag := Tag{Step: step, Kind: KindValues, Source: tissue.Lumen}
		checkRing(t, runRound(t, transports, tag, ringPayload(3)), tag)
	}
}

func TestHubRejectsMismatchedTags(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(2)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for rank := 0; rank < 2; rank++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tag := Tag{Step: uint64(rank), Kind: KindCells, Source: tissue.Lumen}
			_, errs[rank] = hub.Endpoint(rank).Exchange(context.Background(), tag, nil)
		}()
	}
	wg.Wait()
	for rank, err := range errs {
		if !errors.Is(err, ErrRoundMismatch) {
			t.Fatalf("rank %d: expected ErrRoundMismatch, got %v", rank, err)
		}
	}
}

func TestHubRejectsUnknownPeer(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(2)
	_, err := hub.Endpoint(0).Exchange(context.Background(), Tag{}, map[int]Envelope{5: {}})
	if !errors.Is(err, ErrUnknownPeer) {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestHubHonoursContextCancel(t *testing.T) {
	testlog.Start(t)
	hub := NewHub(2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := hub.Endpoint(0).Exchange(ctx, Tag{Step: 1}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while peer is absent, got %v", err)
	}
}

func TestMeshExchangesOverTCP(t *testing.T) {
	testlog.Start(t)
	const size = 3
	listeners := make([]net.Listener, size)
	peers := make([]string, size)
	for i := range listeners {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		listeners[i] = ln
		peers[i] = ln.Addr().String()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	meshes := make([]*Mesh, size)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < size; i++ {
		g.Go(func() error {
			cfg := DefaultMeshConfig()
			cfg.Rank = i
			cfg.Peers = peers
			cfg.Listener = listeners[i]
			cfg.Backoff = BackoffConfig{InitialDelay: 5 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
			m, err := DialMesh(gctx, cfg, log.Logger)
			if err != nil {
				return fmt.Errorf("rank %d: %w", i, err)
			}
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("dial mesh: %v", err)
	}
	defer func() {
		for _, m := range meshes {
			m.Close()
		}
	}()

	transports := make([]Transport, size)
	for i, m := range meshes {
		transports[i] = m
	}
	for step := uint64(1); step <= 2; step++ {
		tag := Tag{Step: step, Kind: KindValues, Source: tissue.LaminaPropria}
		checkRing(t, runRound(t, transports, tag, ringPayload(size)), tag)
	}
}
