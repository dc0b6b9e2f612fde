package border

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownPolicy = errors.New("border: unknown absorb policy")
	// ErrAbsorbed is returned by moves rejected under AbsorbReject.
	ErrAbsorbed = errors.New("border: move crosses absorbing border")
)

// AbsorbPolicy decides what happens to a move that crosses an absorbing
// border.
type AbsorbPolicy int

const (
	// AbsorbDrop removes the entity without logging.
	AbsorbDrop AbsorbPolicy = iota
	// AbsorbWarn removes the entity and logs a warning.
	AbsorbWarn
	// AbsorbReject fails the move and keeps the prior location.
	AbsorbReject
)

func (p AbsorbPolicy) String() string {
	switch p {
	case AbsorbDrop:
		return "drop"
	case AbsorbWarn:
		return "warn"
	case AbsorbReject:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

func ParseAbsorbPolicy(raw string) (AbsorbPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "drop":
		return AbsorbDrop, nil
	case "warn", "warning":
		return AbsorbWarn, nil
	case "reject", "fail":
		return AbsorbReject, nil
	default:
		return AbsorbDrop, fmt.Errorf("%w: %q", ErrUnknownPolicy, raw)
	}
}
