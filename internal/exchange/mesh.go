package exchange

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/meghna-verma/ENISI-MSM-control/internal/protocol/frame"
)

// MeshConfig configures a TCP full mesh. Rank i dials every lower rank and
// accepts every higher one, so each pair shares exactly one connection.
type MeshConfig struct {
	Rank  int
	Peers []string
	// Listener optionally replaces net.Listen on Peers[Rank].
	Listener    net.Listener
	DialTimeout time.Duration
	// IOTimeout bounds each round; zero waits for ctx alone.
	IOTimeout   time.Duration
	MaxAttempts int
	Backoff     BackoffConfig
	Limits      frame.Limits
}

func DefaultMeshConfig() MeshConfig {
	return MeshConfig{
		DialTimeout: 2 * time.Second,
		MaxAttempts: 40,
		Backoff:     DefaultBackoffConfig(),
		Limits:      frame.DefaultLimits(),
	}
}

// Mesh is a Transport over one framed TCP connection per peer.
type Mesh struct {
	cfg    MeshConfig
	conns  []net.Conn
	logger zerolog.Logger

	closeOnce sync.Once
}

// DialMesh connects to every peer and returns once the mesh is complete.
func DialMesh(ctx context.Context, cfg MeshConfig, logger zerolog.Logger) (*Mesh, error) {
	size := len(cfg.Peers)
	if size == 0 || cfg.Rank < 0 || cfg.Rank >= size {
		return nil, fmt.Errorf("%w: rank %d of %d peers", ErrUnknownPeer, cfg.Rank, size)
	}
	if cfg.Limits.MaxPayloadBytes == 0 {
		cfg.Limits = frame.DefaultLimits()
	}
	m := &Mesh{
		cfg:    cfg,
		conns:  make([]net.Conn, size),
		logger: logger.With().Str("component", "exchange.Mesh").Int("rank", cfg.Rank).Logger(),
	}

	ln := cfg.Listener
	expected := size - 1 - cfg.Rank
	if ln == nil && expected > 0 {
		var err error
		ln, err = net.Listen("tcp", cfg.Peers[cfg.Rank])
		if err != nil {
			return nil, fmt.Errorf("exchange: listen %s: %w", cfg.Peers[cfg.Rank], err)
		}
	}
	if ln != nil {
		defer ln.Close()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if expected > 0 {
		g.Go(func() error { return m.accept(gctx, ln, expected, &mu) })
	}
	for peer := 0; peer < cfg.Rank; peer++ {
		g.Go(func() error {
			conn, err := m.dial(gctx, peer)
			if err != nil {
				return err
			}
			mu.Lock()
			m.conns[peer] = conn
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.Close()
		return nil, err
	}
	m.logger.Info().Int("peers", size-1).Msg("exchange.Mesh.DialMesh ready")
	return m, nil
}

func (m *Mesh) accept(ctx context.Context, ln net.Listener, expected int, mu *sync.Mutex) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()
	for accepted := 0; accepted < expected; {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("exchange: accept: %w", err)
		}
		f, err := frame.ReadFrame(conn, m.cfg.Limits)
		if err != nil {
			conn.Close()
			return fmt.Errorf("exchange: read hello: %w", err)
		}
		peer := int(f.Header.Origin)
		if PayloadKind(f.Header.Kind) != KindHello || peer <= m.cfg.Rank || peer >= len(m.conns) {
			conn.Close()
			return fmt.Errorf("%w: bad hello from %s (kind=%d origin=%d)", ErrUnknownPeer, conn.RemoteAddr(), f.Header.Kind, peer)
		}
		mu.Lock()
		dup := m.conns[peer] != nil
		if !dup {
			m.conns[peer] = conn
		}
		mu.Unlock()
		if dup {
			conn.Close()
			return fmt.Errorf("%w: duplicate hello from rank %d", ErrUnknownPeer, peer)
		}
		m.logger.Debug().Int("peer", peer).Msg("exchange.Mesh.accept peer")
		accepted++
	}
	return nil
}

func (m *Mesh) dial(ctx context.Context, peer int) (net.Conn, error) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(m.cfg.Rank)))
	addr := m.cfg.Peers[peer]
	for attempt := 1; ; attempt++ {
		d := net.Dialer{Timeout: m.cfg.DialTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			hello := frame.Frame{Header: frame.Header{Kind: uint32(KindHello), Origin: uint32(m.cfg.Rank)}}
			if err := frame.WriteFrame(conn, hello, m.cfg.Limits); err != nil {
				conn.Close()
				return nil, fmt.Errorf("exchange: hello to rank %d: %w", peer, err)
			}
			m.logger.Debug().Int("peer", peer).Int("attempt", attempt).Msg("exchange.Mesh.dial connected")
			return conn, nil
		}
		if m.cfg.MaxAttempts > 0 && attempt >= m.cfg.MaxAttempts {
			return nil, fmt.Errorf("exchange: dial rank %d at %s after %d attempts: %w", peer, addr, attempt, err)
		}
		delay := NextBackoffDelay(m.cfg.Backoff, attempt, rng)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (m *Mesh) Rank() int { return m.cfg.Rank }
func (m *Mesh) Size() int { return len(m.conns) }

func (m *Mesh) Exchange(ctx context.Context, tag Tag, out map[int]Envelope) ([]Envelope, error) {
	if err := checkPeers(len(m.conns), out); err != nil {
		return nil, err
	}
	in := make([]Envelope, len(m.conns))
	self := out[m.cfg.Rank]
	self.Tag = tag
	self.From = m.cfg.Rank
	in[m.cfg.Rank] = self

	var deadline time.Time
	if m.cfg.IOTimeout > 0 {
		deadline = time.Now().Add(m.cfg.IOTimeout)
	}
	for _, conn := range m.conns {
		if conn != nil {
			conn.SetDeadline(deadline)
		}
	}
	stop := context.AfterFunc(ctx, func() {
		for _, conn := range m.conns {
			if conn != nil {
				conn.SetDeadline(time.Now())
			}
		}
	})
	defer stop()

	var g errgroup.Group
	for peer, conn := range m.conns {
		if conn == nil {
			continue
		}
		env := out[peer]
		env.Tag = tag
		env.From = m.cfg.Rank
		g.Go(func() error {
			if err := frame.WriteFrame(conn, EncodeFrame(env), m.cfg.Limits); err != nil {
				return fmt.Errorf("exchange: send %s to rank %d: %w", tag, peer, err)
			}
			return nil
		})
		g.Go(func() error {
			f, err := frame.ReadFrame(conn, m.cfg.Limits)
			if err != nil {
				return fmt.Errorf("exchange: receive %s from rank %d: %w", tag, peer, err)
			}
			got, err := DecodeFrame(f)
			if err != nil {
				return err
			}
			if got.Tag != tag || got.From != peer {
				return fmt.Errorf("%w: rank %d sent %s, expected %s", ErrRoundMismatch, got.From, got.Tag, tag)
			}
			in[peer] = got
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Join(ctxErr, err)
		}
		return nil, err
	}
	return in, nil
}

func (m *Mesh) Close() error {
	var errs []error
	m.closeOnce.Do(func() {
		for _, conn := range m.conns {
			if conn != nil {
				if err := conn.Close(); err != nil {
					errs = append(errs, err)
				}
			}
		}
	})
	return errors.Join(errs...)
}
