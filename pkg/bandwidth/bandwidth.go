package bandwidth

import (
	"math"
	"sort"

	"golang.org/x/exp/slices"

	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/throughput"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	log "github.com/sirupsen/logrus"
)

// Demand is the downlink PRB demand of one UE for the current tick
type Demand struct {
	IMSI             types.IMSI
	Slice            model.SliceType
	Want             int
	ThroughputPerPRB float64
}

// ComputeDemand derives the PRBs ue needs to reach its downlink GBR with its
// current MCS. UEs without MCS have no demand.
func ComputeDemand(ue *model.UE) (Demand, bool) {
	if ue.DownlinkMCS == nil {
		return Demand{}, false
	}
	d := Demand{
		IMSI:             ue.IMSI,
		Slice:            ue.Slice,
		ThroughputPerPRB: throughput.PerPRB(ue.DownlinkMCS),
	}
	if d.Slice == "" {
		d.Slice = model.SliceEMBB
	}
	if d.ThroughputPerPRB > 0 && ue.QoS.GBRDL > 0 {
		// no cell has more than MaxInt32 PRBs
		d.Want = int(math.Min(math.Ceil(ue.QoS.GBRDL/d.ThroughputPerPRB), math.MaxInt32))
	}
	return d, true
}

// Request is the input of one downlink allocation pass
type Request struct {
	Budget  int
	Weights map[model.SliceType]float64
	// Cap limits the PRBs of any single UE, nil means unlimited
	Cap     *int
	Demands []Demand
}

// desired is the demand of d limited by the per-UE cap
func (r *Request) desired(d Demand) int {
	want := d.Want
	if r.Cap != nil && *r.Cap < want {
		want = *r.Cap
	}
	if want < 0 {
		return 0
	}
	return want
}

// Allocation is the outcome of one downlink allocation pass
type Allocation struct {
	PerUE        map[types.IMSI]int
	SliceBudgets map[model.SliceType]int
	// Leftover PRBs released by under-subscribed slices
	Leftover      int
	Redistributed int
	Dropped       int
	Total         int
}

func newAllocation(n int) *Allocation {
	return &Allocation{
		PerUE:        make(map[types.IMSI]int, n),
		SliceBudgets: map[model.SliceType]int{},
	}
}

// PartitionSlices splits budget across the weighted slices. Weights are clamped
// at zero and normalized; the integer budgets always sum to budget. Remainder
// PRBs go to the largest fractional parts, ties by slice name.
func PartitionSlices(budget int, weights map[model.SliceType]float64) map[model.SliceType]int {
	if budget < 0 {
		budget = 0
	}
	names := model.SortedSlices(weights)
	weights = effectiveWeights(weights)
	total := 0.0
	for _, s := range names {
		total += weights[s]
	}
	if total <= 0 {
		weights = map[model.SliceType]float64{model.SliceEMBB: 1}
		names = []model.SliceType{model.SliceEMBB}
		total = 1
	}

	type remainder struct {
		slice model.SliceType
		frac  float64
	}
	parts := make(map[model.SliceType]int, len(weights))
	rems := make([]remainder, 0, len(weights))
	used := 0
	for _, s := range names {
		raw := float64(budget) * weights[s] / total
		base := int(math.Floor(raw))
		parts[s] = base
		used += base
		rems = append(rems, remainder{slice: s, frac: raw - float64(base)})
	}
	sort.SliceStable(rems, func(i, j int) bool {
		if rems[i].frac != rems[j].frac {
			return rems[i].frac > rems[j].frac
		}
		return rems[i].slice < rems[j].slice
	})

	left := budget - used
	for left > 0 {
		for _, r := range rems {
			if left == 0 {
				break
			}
			parts[r.slice]++
			left--
		}
	}
	return parts
}

// effectiveWeights clamps negative and NaN weights to zero. When any weight is
// +Inf the infinite slices share the budget equally and the rest get nothing.
func effectiveWeights(weights map[model.SliceType]float64) map[model.SliceType]float64 {
	infinite := false
	for _, w := range weights {
		if math.IsInf(w, 1) {
			infinite = true
		}
	}
	eff := make(map[model.SliceType]float64, len(weights))
	for s, w := range weights {
		switch {
		case infinite && math.IsInf(w, 1):
			eff[s] = 1
		case infinite, math.IsNaN(w), w < 0:
			eff[s] = 0
		default:
			eff[s] = w
		}
	}
	return eff
}

// share is one participant of an integer apportionment
type share struct {
	imsi   types.IMSI
	weight int
	limit  int
}

// apportion divides total among shares proportionally to their weights with
// floor plus largest remainder rounding, never above a share's limit. PRBs a
// saturated share cannot take go round again to the others until the total or
// all room is used. Ties go to the lowest IMSI.
func apportion(total int, shares []share) map[types.IMSI]int {
	out := make(map[types.IMSI]int, len(shares))
	remaining := total
	for remaining > 0 {
		active := make([]share, 0, len(shares))
		weights := 0
		for _, s := range shares {
			if s.weight > 0 && out[s.imsi] < s.limit {
				active = append(active, s)
				weights += s.weight
			}
		}
		if len(active) == 0 {
			break
		}

		type remainder struct {
			imsi types.IMSI
			rem  int
		}
		rems := make([]remainder, 0, len(active))
		given := 0
		for _, s := range active {
			floor := remaining * s.weight / weights
			room := s.limit - out[s.imsi]
			if floor > room {
				floor = room
			}
			out[s.imsi] += floor
			given += floor
			if out[s.imsi] < s.limit {
				rems = append(rems, remainder{imsi: s.imsi, rem: remaining * s.weight % weights})
			}
		}
		sort.Slice(rems, func(i, j int) bool {
			if rems[i].rem != rems[j].rem {
				return rems[i].rem > rems[j].rem
			}
			return rems[i].imsi < rems[j].imsi
		})
		left := remaining - given
		for _, r := range rems {
			if left == 0 {
				break
			}
			out[r.imsi]++
			left--
		}
		if left == remaining {
			break
		}
		remaining = left
	}
	return out
}

func sortedDemands(demands []Demand) []Demand {
	sorted := make([]Demand, len(demands))
	copy(sorted, demands)
	slices.SortFunc(sorted, func(a, b Demand) int {
		switch {
		case a.IMSI < b.IMSI:
			return -1
		case a.IMSI > b.IMSI:
			return 1
		}
		return 0
	})
	return sorted
}

func sumInts(m map[types.IMSI]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// allocate runs the slice partition, the per slice allocation and the
// leftover redistribution. weigh turns a UE's desired PRBs or remaining room
// into its apportionment weight.
func allocate(req *Request, weigh func(n int) int) *Allocation {
	alloc := newAllocation(len(req.Demands))
	if len(req.Demands) == 0 {
		return alloc
	}

	demands := sortedDemands(req.Demands)
	bySlice := map[model.SliceType][]Demand{}
	for _, d := range demands {
		alloc.PerUE[d.IMSI] = 0
		bySlice[d.Slice] = append(bySlice[d.Slice], d)
	}

	weights := req.Weights
	if len(weights) == 0 {
		weights = map[model.SliceType]float64{model.SliceEMBB: 1}
	}
	alloc.SliceBudgets = PartitionSlices(req.Budget, weights)

	names := make([]model.SliceType, 0, len(bySlice))
	for s := range bySlice {
		names = append(names, s)
	}
	slices.Sort(names)

	for _, s := range names {
		B := alloc.SliceBudgets[s]
		if B <= 0 {
			continue
		}
		ues := bySlice[s]
		totalDesired := 0
		for _, d := range ues {
			totalDesired += req.desired(d)
		}

		switch {
		case totalDesired == 0:
			alloc.Leftover += B
		case totalDesired <= B:
			for _, d := range ues {
				alloc.PerUE[d.IMSI] += req.desired(d)
			}
			alloc.Leftover += B - totalDesired
		default:
			shares := make([]share, 0, len(ues))
			for _, d := range ues {
				want := req.desired(d)
				shares = append(shares, share{imsi: d.IMSI, weight: weigh(want), limit: want})
			}
			for imsi, n := range apportion(B, shares) {
				alloc.PerUE[imsi] += n
			}
		}
		log.Debugf("slice %s: budget %d desired %d", s, B, totalDesired)
	}

	if alloc.Leftover > 0 {
		shares := make([]share, 0, len(demands))
		totalRoom := 0
		for _, d := range demands {
			room := req.desired(d) - alloc.PerUE[d.IMSI]
			if room <= 0 {
				continue
			}
			totalRoom += room
			shares = append(shares, share{imsi: d.IMSI, weight: weigh(room), limit: room})
		}
		if totalRoom > 0 {
			for imsi, n := range apportion(alloc.Leftover, shares) {
				alloc.PerUE[imsi] += n
				alloc.Redistributed += n
			}
		}
		alloc.Dropped = alloc.Leftover - alloc.Redistributed
	}

	alloc.Total = sumInts(alloc.PerUE)
	return alloc
}
