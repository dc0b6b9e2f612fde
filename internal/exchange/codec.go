package exchange

import (
	"bytes"
	"fmt"

	"github.com/meghna-verma/ENISI-MSM-control/internal/agent"
	"github.com/meghna-verma/ENISI-MSM-control/internal/grid"
	"github.com/meghna-verma/ENISI-MSM-control/internal/protocol/frame"
	"github.com/meghna-verma/ENISI-MSM-control/internal/protocol/tlv"
	"github.com/meghna-verma/ENISI-MSM-control/internal/tissue"
)

// Envelope payload field ids.
const (
	fieldSource uint16 = 1
	fieldAgent  uint16 = 2
	fieldValue  uint16 = 3
)

// Agent package field ids.
const (
	agentSerial uint16 = iota + 1
	agentStartRank
	agentKind
	agentState
	agentX
	agentY
	agentDest
	agentMigrate
)

// Value package field ids.
const (
	valueDest uint16 = iota + 1
	valueX
	valueY
	valueName
	valueAmount
)

// EncodeFrame converts env into a wire frame.
func EncodeFrame(env Envelope) frame.Frame {
	fields := make([]tlv.Field, 0, 1+len(env.Agents)+len(env.Values))
	fields = append(fields, tlv.I32(fieldSource, int32(env.Tag.Source)))
	for _, a := range env.Agents {
		fields = append(fields, tlv.Nested(fieldAgent, []tlv.Field{
			tlv.U64(agentSerial, a.ID.Serial),
			tlv.I32(agentStartRank, a.ID.StartRank),
			tlv.U32(agentKind, uint32(a.ID.Kind)),
			tlv.I32(agentState, a.State),
			tlv.F64(agentX, a.Location[grid.X]),
			tlv.F64(agentY, a.Location[grid.Y]),
			tlv.I32(agentDest, int32(a.Dest)),
			tlv.Bool(agentMigrate, a.Migrate),
		}))
	}
	for _, v := range env.Values {
		inner := make([]tlv.Field, 0, 3+2*len(v.Names))
		inner = append(inner,
			tlv.I32(valueDest, int32(v.Dest)),
			tlv.I32(valueX, int32(v.Cell[grid.X])),
			tlv.I32(valueY, int32(v.Cell[grid.Y])),
		)
		for i, name := range v.Names {
			inner = append(inner, tlv.String(valueName, name), tlv.F64(valueAmount, v.Values[i]))
		}
		fields = append(fields, tlv.Nested(fieldValue, inner))
	}
	return frame.Frame{
		Header: frame.Header{
			Step:   env.Tag.Step,
			Kind:   uint32(env.Tag.Kind),
			Origin: uint32(env.From),
		},
		Payload: tlv.EncodeFields(fields),
	}
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(f frame.Frame) (Envelope, error) {
	env := Envelope{
		Tag:  Tag{Step: f.Header.Step, Kind: PayloadKind(f.Header.Kind), Source: tissue.Invalid},
		From: int(f.Header.Origin),
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("exchange: decode payload: %w", err)
	}
	for _, field := range fields {
		switch field.ID {
		case fieldSource:
			src, err := field.I32()
			if err != nil {
				return Envelope{}, err
			}
			env.Tag.Source = tissue.Type(src)
		case fieldAgent:
			a, err := decodeAgent(field)
			if err != nil {
				return Envelope{}, err
			}
			env.Agents = append(env.Agents, a)
		case fieldValue:
			v, err := decodeValue(field)
			if err != nil {
				return Envelope{}, err
			}
			env.Values = append(env.Values, v)
		}
	}
	return env, nil
}

// Marshal encodes env as a complete frame.
func Marshal(env Envelope, limits frame.Limits) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.WriteFrame(&buf, EncodeFrame(env), limits); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Unmarshal(b []byte, limits frame.Limits) (Envelope, error) {
	f, err := frame.ReadFrame(bytes.NewReader(b), limits)
	if err != nil {
		return Envelope{}, err
	}
	return DecodeFrame(f)
}

func decodeAgent(field tlv.Field) (AgentPackage, error) {
	inner, err := field.Fields()
	if err != nil {
		return AgentPackage{}, err
	}
	r := fieldReader{fields: inner}
	a := AgentPackage{
		ID: agent.ID{
			Serial:    r.u64(agentSerial),
			StartRank: r.i32(agentStartRank),
			Kind:      agent.Kind(r.u32(agentKind)),
		},
		State:    r.i32(agentState),
		Location: grid.Vector{r.f64(agentX), r.f64(agentY)},
		Dest:     tissue.Type(r.i32(agentDest)),
		Migrate:  r.flag(agentMigrate),
	}
	if r.err != nil {
		return AgentPackage{}, fmt.Errorf("exchange: decode agent: %w", r.err)
	}
	return a, nil
}

// fieldReader keeps the first decode error so required fields can be read
// in one expression.
type fieldReader struct {
	fields []tlv.Field
	err    error
}

func (r *fieldReader) get(id uint16) (tlv.Field, bool) {
	if r.err != nil {
		return tlv.Field{}, false
	}
	f, err := tlv.Require(r.fields, id)
	r.err = err
	return f, err == nil
}

func (r *fieldReader) u32(id uint16) uint32 {
	f, ok := r.get(id)
	if !ok {
		return 0
	}
	v, err := f.U32()
	r.err = err
	return v
}

func (r *fieldReader) u64(id uint16) uint64 {
	f, ok := r.get(id)
	if !ok {
		return 0
	}
	v, err := f.U64()
	r.err = err
	return v
}

func (r *fieldReader) i32(id uint16) int32 {
	f, ok := r.get(id)
	if !ok {
		return 0
	}
	v, err := f.I32()
	r.err = err
	return v
}

func (r *fieldReader) f64(id uint16) float64 {
	f, ok := r.get(id)
	if !ok {
		return 0
	}
	v, err := f.F64()
	r.err = err
	return v
}

func (r *fieldReader) flag(id uint16) bool {
	f, ok := r.get(id)
	if !ok {
		return false
	}
	v, err := f.Bool()
	r.err = err
	return v
}

func decodeValue(field tlv.Field) (ValuePackage, error) {
	inner, err := field.Fields()
	if err != nil {
		return ValuePackage{}, err
	}
	var v ValuePackage
	for _, f := range inner {
		var err error
		switch f.ID {
		case valueDest:
			var d int32
			d, err = f.I32()
			v.Dest = tissue.Type(d)
		case valueX, valueY:
			var c int32
			c, err = f.I32()
			if f.ID == valueX {
				v.Cell[grid.X] = int(c)
			} else {
				v.Cell[grid.Y] = int(c)
			}
		case valueName:
			var name string
			name, err = f.Text()
			v.Names = append(v.Names, name)
		case valueAmount:
			var amount float64
			amount, err = f.F64()
			v.Values = append(v.Values, amount)
		}
		if err != nil {
			return ValuePackage{}, fmt.Errorf("exchange: decode value: %w", err)
		}
	}
	if len(v.Names) != len(v.Values) {
		return ValuePackage{}, fmt.Errorf("exchange: decode value: %d names for %d values", len(v.Names), len(v.Values))
	}
	return v, nil
}
