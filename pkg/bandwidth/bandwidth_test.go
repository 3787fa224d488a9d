package bandwidth

import (
	"math"
	"math/rand"
	"testing"

	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/throughput"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int {
	return &v
}

func embbOnly() map[model.SliceType]float64 {
	return map[model.SliceType]float64{model.SliceEMBB: 1}
}

func TestComputeDemand(t *testing.T) {
	entry := &model.MCSEntry{Index: 22, ModulationOrder: 6, TargetCodeRate: 666}
	perPRB := throughput.PerPRB(entry)

	ue := &model.UE{IMSI: 1, DownlinkMCS: entry, QoS: model.QoSProfile{GBRDL: 10 * perPRB}}
	d, ok := ComputeDemand(ue)
	require.True(t, ok)
	assert.Equal(t, 10, d.Want)
	assert.Equal(t, perPRB, d.ThroughputPerPRB)
	assert.Equal(t, model.SliceEMBB, d.Slice)

	ue.QoS.GBRDL = 10*perPRB + 1
	d, _ = ComputeDemand(ue)
	assert.Equal(t, 11, d.Want)

	ue.QoS.GBRDL = -5
	d, _ = ComputeDemand(ue)
	assert.Equal(t, 0, d.Want)

	for _, gbr := range []float64{1e30, math.Inf(1)} {
		ue.QoS.GBRDL = gbr
		d, _ = ComputeDemand(ue)
		assert.Equal(t, math.MaxInt32, d.Want, "GBR %v", gbr)
	}
	alloc := (&ProportionalFair{}).Allocate(&Request{Budget: 100, Weights: embbOnly(), Demands: []Demand{d}})
	assert.Equal(t, 100, alloc.PerUE[1])

	ue.DownlinkMCS = &model.MCSEntry{}
	ue.QoS.GBRDL = 1e6
	d, ok = ComputeDemand(ue)
	assert.True(t, ok)
	assert.Equal(t, 0, d.Want, "zero throughput per PRB is no demand")

	ue.DownlinkMCS = nil
	_, ok = ComputeDemand(ue)
	assert.False(t, ok)
}

func TestPartitionSlices(t *testing.T) {
	parts := PartitionSlices(100, model.DefaultSliceWeights())
	assert.Equal(t, 60, parts[model.SliceEMBB])
	assert.Equal(t, 30, parts[model.SliceURLLC])
	assert.Equal(t, 10, parts[model.SliceMMTC])

	for _, budget := range []int{0, 1, 7, 51, 106, 273} {
		parts := PartitionSlices(budget, model.DefaultSliceWeights())
		total := 0
		for _, p := range parts {
			total += p
		}
		assert.Equal(t, budget, total)
	}
}

func TestPartitionSlicesTies(t *testing.T) {
	parts := PartitionSlices(10, map[model.SliceType]float64{"c": 1, "a": 1, "b": 1})
	assert.Equal(t, map[model.SliceType]int{"a": 4, "b": 3, "c": 3}, parts)
}

func TestPartitionSlicesNormalizes(t *testing.T) {
	parts := PartitionSlices(100, map[model.SliceType]float64{model.SliceEMBB: 3, model.SliceURLLC: 1, model.SliceMMTC: -2})
	assert.Equal(t, 75, parts[model.SliceEMBB])
	assert.Equal(t, 25, parts[model.SliceURLLC])
	assert.Equal(t, 0, parts[model.SliceMMTC])

	parts = PartitionSlices(100, map[model.SliceType]float64{model.SliceURLLC: 0})
	assert.Equal(t, map[model.SliceType]int{model.SliceEMBB: 100}, parts)

	parts = PartitionSlices(100, nil)
	assert.Equal(t, map[model.SliceType]int{model.SliceEMBB: 100}, parts)
}

func TestPartitionSlicesNonFinite(t *testing.T) {
	tests := map[string]struct {
		weights map[model.SliceType]float64
		want    map[model.SliceType]int
	}{
		"nan is zero": {
			weights: map[model.SliceType]float64{model.SliceEMBB: math.NaN(), model.SliceURLLC: 0.3},
			want:    map[model.SliceType]int{model.SliceEMBB: 0, model.SliceURLLC: 100},
		},
		"all nan": {
			weights: map[model.SliceType]float64{model.SliceEMBB: math.NaN(), model.SliceURLLC: math.NaN()},
			want:    map[model.SliceType]int{model.SliceEMBB: 100},
		},
		"inf takes all": {
			weights: map[model.SliceType]float64{model.SliceEMBB: math.Inf(1), model.SliceURLLC: 0.3},
			want:    map[model.SliceType]int{model.SliceEMBB: 100, model.SliceURLLC: 0},
		},
		"infs share": {
			weights: map[model.SliceType]float64{model.SliceEMBB: math.Inf(1), model.SliceURLLC: math.Inf(1), model.SliceMMTC: 5},
			want:    map[model.SliceType]int{model.SliceEMBB: 50, model.SliceURLLC: 50, model.SliceMMTC: 0},
		},
		"negative inf is zero": {
			weights: map[model.SliceType]float64{model.SliceEMBB: math.Inf(-1), model.SliceURLLC: 1},
			want:    map[model.SliceType]int{model.SliceEMBB: 0, model.SliceURLLC: 100},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, PartitionSlices(100, tt.weights))
		})
	}

	req := &Request{
		Budget:  100,
		Weights: map[model.SliceType]float64{model.SliceEMBB: math.Inf(1), model.SliceURLLC: 0.3},
		Demands: []Demand{{IMSI: 1, Slice: model.SliceEMBB, Want: 40}},
	}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 40, alloc.PerUE[1])
	for _, b := range alloc.SliceBudgets {
		assert.GreaterOrEqual(t, b, 0)
	}
}

func TestApportion(t *testing.T) {
	got := apportion(10, []share{{imsi: 3, weight: 1, limit: 10}, {imsi: 1, weight: 1, limit: 10}, {imsi: 2, weight: 1, limit: 10}})
	assert.Equal(t, map[types.IMSI]int{1: 4, 2: 3, 3: 3}, got)

	// saturated shares hand their part to the others
	got = apportion(10, []share{{imsi: 1, weight: 5, limit: 2}, {imsi: 2, weight: 1, limit: 10}})
	assert.Equal(t, map[types.IMSI]int{1: 2, 2: 8}, got)

	// not enough room
	got = apportion(10, []share{{imsi: 1, weight: 1, limit: 2}, {imsi: 2, weight: 1, limit: 3}})
	assert.Equal(t, map[types.IMSI]int{1: 2, 2: 3}, got)

	got = apportion(5, nil)
	assert.Empty(t, got)
}

// one cell, one slice, one UE wanting more than the cell has
func TestScenarioFullBudget(t *testing.T) {
	req := &Request{Budget: 100, Weights: embbOnly(), Demands: []Demand{{IMSI: 1, Slice: model.SliceEMBB, Want: 150}}}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 100, alloc.PerUE[1])
	assert.Equal(t, 100, alloc.Total)
	assert.Equal(t, 0, alloc.Leftover)
}

// both UEs satisfied, the slack has nowhere to go
func TestScenarioUnderSubscribedSlice(t *testing.T) {
	req := &Request{Budget: 20, Weights: embbOnly(), Demands: []Demand{
		{IMSI: 1, Slice: model.SliceEMBB, Want: 10},
		{IMSI: 2, Slice: model.SliceEMBB, Want: 5},
	}}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 10, alloc.PerUE[1])
	assert.Equal(t, 5, alloc.PerUE[2])
	assert.Equal(t, 5, alloc.Leftover)
	assert.Equal(t, 0, alloc.Redistributed)
	assert.Equal(t, 5, alloc.Dropped)
}

// the slack of eMBB flows to a hungry mMTC UE
func TestLeftoverCrossesSlices(t *testing.T) {
	req := &Request{
		Budget:  40,
		Weights: map[model.SliceType]float64{model.SliceEMBB: 0.5, model.SliceMMTC: 0.5},
		Demands: []Demand{
			{IMSI: 1, Slice: model.SliceEMBB, Want: 10},
			{IMSI: 2, Slice: model.SliceEMBB, Want: 5},
			{IMSI: 3, Slice: model.SliceMMTC, Want: 30},
		},
	}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 10, alloc.PerUE[1])
	assert.Equal(t, 5, alloc.PerUE[2])
	assert.Equal(t, 25, alloc.PerUE[3])
	assert.Equal(t, 5, alloc.Redistributed)
	assert.Equal(t, 0, alloc.Dropped)
	assert.Equal(t, 40, alloc.Total)
}

// the cap bounds the UE, the rest of the slice is dropped
func TestScenarioCap(t *testing.T) {
	req := &Request{Budget: 50, Weights: embbOnly(), Cap: intPtr(5), Demands: []Demand{{IMSI: 1, Slice: model.SliceEMBB, Want: 20}}}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 5, alloc.PerUE[1])
	assert.Equal(t, 45, alloc.Leftover)
	assert.Equal(t, 45, alloc.Dropped)
}

func TestZeroDesiredSliceBecomesLeftover(t *testing.T) {
	req := &Request{
		Budget:  10,
		Weights: map[model.SliceType]float64{model.SliceEMBB: 0.5, model.SliceURLLC: 0.5},
		Demands: []Demand{
			{IMSI: 1, Slice: model.SliceURLLC, Want: 0},
			{IMSI: 2, Slice: model.SliceEMBB, Want: 8},
		},
	}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 5, alloc.Leftover)
	assert.Equal(t, 8, alloc.PerUE[2])
	assert.Equal(t, 0, alloc.PerUE[1])
}

func TestEmptyWeightedSliceIsNotLeftover(t *testing.T) {
	req := &Request{
		Budget:  100,
		Weights: model.DefaultSliceWeights(),
		Demands: []Demand{{IMSI: 1, Slice: model.SliceEMBB, Want: 80}},
	}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 60, alloc.PerUE[1])
	assert.Equal(t, 0, alloc.Leftover)
}

func TestOversubscribedSliceIsFullyUsed(t *testing.T) {
	req := &Request{Budget: 10, Weights: embbOnly(), Demands: []Demand{
		{IMSI: 1, Slice: model.SliceEMBB, Want: 10},
		{IMSI: 2, Slice: model.SliceEMBB, Want: 2},
		{IMSI: 3, Slice: model.SliceEMBB, Want: 10},
	}}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, map[types.IMSI]int{1: 5, 2: 1, 3: 4}, alloc.PerUE)

	alloc = (&RoundRobin{}).Allocate(req)
	assert.Equal(t, map[types.IMSI]int{1: 4, 2: 2, 3: 4}, alloc.PerUE)
}

func TestNoDemand(t *testing.T) {
	alloc := (&ProportionalFair{}).Allocate(&Request{Budget: 100, Weights: embbOnly()})
	assert.Empty(t, alloc.PerUE)
	assert.Equal(t, 0, alloc.Total)
}

func TestZeroWeightsFallBack(t *testing.T) {
	req := &Request{
		Budget:  10,
		Weights: map[model.SliceType]float64{model.SliceEMBB: 0, model.SliceURLLC: 0},
		Demands: []Demand{{IMSI: 1, Slice: model.SliceEMBB, Want: 20}},
	}
	alloc := (&ProportionalFair{}).Allocate(req)
	assert.Equal(t, 10, alloc.PerUE[1])
}

func randomRequest(r *rand.Rand) *Request {
	slices := []model.SliceType{model.SliceEMBB, model.SliceURLLC, model.SliceMMTC, "V2X"}
	req := &Request{
		Budget:  r.Intn(200),
		Weights: map[model.SliceType]float64{},
	}
	for _, s := range slices[:3] {
		if r.Intn(4) > 0 {
			req.Weights[s] = r.Float64() * 2
		}
	}
	if r.Intn(2) == 0 {
		req.Cap = intPtr(r.Intn(30))
	}
	for i := 0; i < r.Intn(12); i++ {
		req.Demands = append(req.Demands, Demand{
			IMSI:  types.IMSI(i + 1),
			Slice: slices[r.Intn(len(slices))],
			Want:  r.Intn(80),
		})
	}
	return req
}

func TestAllocationInvariants(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for _, strategy := range []AllocationStrategy{&ProportionalFair{}, &RoundRobin{}} {
		for i := 0; i < 2000; i++ {
			req := randomRequest(r)
			alloc := strategy.Allocate(req)
			total := 0
			for _, d := range req.Demands {
				got := alloc.PerUE[d.IMSI]
				assert.GreaterOrEqual(t, got, 0)
				assert.LessOrEqual(t, got, req.desired(d), "%s: UE above its desire", strategy.Name())
				if req.Cap != nil {
					assert.LessOrEqual(t, got, *req.Cap)
				}
				total += got
			}
			assert.LessOrEqual(t, total, req.Budget, "%s: over allocation", strategy.Name())
			assert.Equal(t, total, alloc.Total)
			assert.Equal(t, alloc.Leftover, alloc.Redistributed+alloc.Dropped)
		}
	}
}

func TestSingleSliceConservation(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 500; i++ {
		budget := r.Intn(150)
		req := &Request{Budget: budget, Weights: embbOnly()}
		sum := 0
		for j := 0; j < 1+r.Intn(10); j++ {
			want := r.Intn(50)
			sum += want
			req.Demands = append(req.Demands, Demand{IMSI: types.IMSI(j + 1), Slice: model.SliceEMBB, Want: want})
		}
		alloc := (&ProportionalFair{}).Allocate(req)
		expected := sum
		if budget < sum {
			expected = budget
		}
		assert.Equal(t, expected, alloc.Total)
	}
}

func TestMonotonicity(t *testing.T) {
	prev := -1
	for want := 0; want <= 80; want++ {
		req := &Request{Budget: 40, Weights: embbOnly(), Demands: []Demand{
			{IMSI: 1, Slice: model.SliceEMBB, Want: want},
			{IMSI: 2, Slice: model.SliceEMBB, Want: 17},
			{IMSI: 3, Slice: model.SliceEMBB, Want: 9},
		}}
		got := (&ProportionalFair{}).Allocate(req).PerUE[1]
		assert.GreaterOrEqual(t, got, prev, "want %d", want)
		prev = got
	}
}

func TestNewStrategy(t *testing.T) {
	s, err := NewStrategy(model.DefaultSchedulerPolicy)
	require.NoError(t, err)
	assert.IsType(t, &ProportionalFair{}, s)

	s, err = NewStrategy("pf")
	require.NoError(t, err)
	assert.Equal(t, QOS_AWARE_PFS, s.Name())

	s, err = NewStrategy("RR")
	require.NoError(t, err)
	assert.Equal(t, ROUND_ROBIN, s.Name())

	_, err = NewStrategy("EDF")
	assert.Error(t, err)
}
