package bridge

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/joeydtaylor/steeze-bridge/pkg/config"
)

// IDGenerator hands out correlation ids. Ids never repeat within a process.
type IDGenerator interface {
	Next() string
}

// Sequence yields req-1, req-2, ...
type Sequence struct{ n atomic.Uint64 }

func (s *Sequence) Next() string { return "req-" + strconv.FormatUint(s.n.Add(1), 10) }

// UUIDs yields req-<uuid v4>; useful when several bridges share one core.
type UUIDs struct{}

func (UUIDs) Next() string { return "req-" + uuid.NewString() }

func NewIDGenerator(strategy string) (IDGenerator, error) {
	switch strategy {
	case config.IDSequence, "":
		return &Sequence{}, nil
	case config.IDUUID:
		return UUIDs{}, nil
	default:
		return nil, fmt.Errorf("bridge: unknown id strategy %q", strategy)
	}
}
