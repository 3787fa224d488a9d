package bandwidth

import (
	"strings"

	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/onosproject/onos-lib-go/pkg/errors"
)

const (
	QOS_AWARE_PFS     = model.DefaultSchedulerPolicy
	PROPORTIONAL_FAIR = "PF"
	ROUND_ROBIN       = "RR"

	AVAIL_PRBS_DL_METRIC = "RRU.PrbAvailDl"
	AVAIL_PRBS_UL_METRIC = "RRU.PrbAvailUl"

	USED_PRBS_DL_METRIC = "RRU.PrbUsedDl"
	USED_PRBS_UL_METRIC = "RRU.PrbUsedUl"

	ACTIVE_UES_DL_METRIC = "DRB.MeanActiveUeDl"

	UE_THP_DL_METRIC = "DRB.UEThpDl"
)

// AllocationStrategy divides the downlink PRBs of a cell among its UEs
type AllocationStrategy interface {
	Name() string
	Allocate(req *Request) *Allocation
}

// NewStrategy returns the strategy implementing a scheduler policy tag
func NewStrategy(policy string) (AllocationStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(policy)) {
	case "", strings.ToUpper(QOS_AWARE_PFS), PROPORTIONAL_FAIR:
		return &ProportionalFair{}, nil
	case ROUND_ROBIN:
		return &RoundRobin{}, nil
	}
	return nil, errors.NewInvalid("unknown scheduler policy %q", policy)
}

// ==========================================================
// PROPORTIONAL FAIR
// ==========================================================

// ProportionalFair shares every budget in proportion to what each UE still needs,
// first within slices and then across them with the slack of under-subscribed slices
type ProportionalFair struct{}

func (s *ProportionalFair) Name() string {
	return QOS_AWARE_PFS
}

func (s *ProportionalFair) Allocate(req *Request) *Allocation {
	return allocate(req, func(n int) int { return n })
}

// ==========================================================
// ROUND ROBIN
// ==========================================================

// RoundRobin gives every demanding UE of an oversubscribed slice an equal share,
// with the same cap and leftover handling as ProportionalFair
type RoundRobin struct{}

func (s *RoundRobin) Name() string {
	return ROUND_ROBIN
}

func (s *RoundRobin) Allocate(req *Request) *Allocation {
	return allocate(req, func(n int) int {
		if n > 0 {
			return 1
		}
		return 0
	})
}
