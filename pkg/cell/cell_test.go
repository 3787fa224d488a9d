package cell

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/nfvri/ran-scheduler/pkg/mcs"
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/signal"
	"github.com/nfvri/ran-scheduler/pkg/throughput"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MCS 22 is selected for CQI 12
var perPRBCQI12 = throughput.Estimate(6, 666, 1)

func intPtr(v int) *int {
	return &v
}

func testConfig(maxDL int) model.CellConfig {
	return model.CellConfig{
		CellID:              "cell1",
		BaseStationID:       "bs1",
		CarrierFrequencyMHz: 3500,
		MaxPRB:              maxDL + 20,
		MaxDLPRB:            maxDL,
		MaxULPRB:            20,
		TransmitPowerDBm:    43,
	}
}

func newTestCell(t *testing.T, maxDL int, opts ...Option) *Cell {
	bs := &model.BaseStation{ID: "bs1", Location: model.Position{X: 0, Y: 0}}
	c, err := NewCell(bs, testConfig(maxDL), opts...)
	require.NoError(t, err)
	return c
}

func newUE(imsi types.IMSI, cqi int, slice model.SliceType, wantPRB float64) *model.UE {
	ue := model.NewUE(model.UEConfig{
		IMSI:                   imsi,
		Position:               model.Position{X: 100, Y: 100},
		UplinkTransmitPowerDBm: 23,
		DownlinkCQI:            cqi,
		Slice:                  slice,
		QoS:                    model.QoSProfile{GBRDL: wantPRB * perPRBCQI12},
	}, mcs.Unset)
	return ue
}

func TestNewCellPreconditions(t *testing.T) {
	bs := &model.BaseStation{ID: "bs1"}

	_, err := NewCell(nil, testConfig(100))
	assert.True(t, errors.IsInvalid(err))

	cfg := testConfig(100)
	cfg.MaxDLPRB = 0
	_, err = NewCell(bs, cfg)
	assert.True(t, errors.IsInvalid(err))

	cfg = testConfig(100)
	cfg.SchedulerPolicy = "EDF"
	_, err = NewCell(bs, cfg)
	assert.Error(t, err)

	_, err = NewCell(bs, testConfig(100), WithPathLossModel("nope"))
	assert.True(t, errors.IsNotFound(err))

	_, err = NewCell(bs, testConfig(100), WithTables(model.Tables{}))
	assert.Error(t, err)

	_, err = NewCell(bs, testConfig(100), WithSliceWeights(map[model.SliceType]float64{model.SliceEMBB: math.NaN()}))
	assert.True(t, errors.IsInvalid(err))

	c, err := NewCell(bs, testConfig(100))
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSchedulerPolicy, c.Config().SchedulerPolicy)
	assert.Equal(t, "cell1", c.ID())
	assert.Equal(t, model.DefaultPathLossModel, c.PathLossModel())
	assert.Equal(t, model.DefaultSliceWeights(), c.SliceWeights())
	assert.Nil(t, c.PRBPerUECap())
}

func TestStepRequiresConstruction(t *testing.T) {
	c := &Cell{}
	assert.Error(t, c.Step(1))

	c = newTestCell(t, 100)
	assert.Error(t, c.Step(-1))
	assert.NoError(t, c.Step(0))
}

func TestRegisterDeregister(t *testing.T) {
	c := newTestCell(t, 100)
	ue := newUE(1, 12, model.SliceEMBB, 10)
	require.NoError(t, c.RegisterUE(ue))
	assert.Error(t, c.RegisterUE(nil))
	assert.Equal(t, "cell1", ue.ServingCell)
	assert.True(t, c.IsConnected(1))

	alloc, _ := c.Allocation()
	assert.Equal(t, PRBAllocation{}, alloc[1])

	assert.True(t, c.DeregisterUE(ue))
	afterFirst := c.Snapshot()

	assert.False(t, c.DeregisterUE(ue))
	afterSecond := c.Snapshot()
	assert.Equal(t, afterFirst, afterSecond)
	assert.Equal(t, 0, c.NumUEs())
	assert.Empty(t, ue.ServingCell)
	assert.False(t, c.DeregisterUE(nil))
}

// one UE wanting more than the whole cell
func TestScenarioFullBudget(t *testing.T) {
	c := newTestCell(t, 100, WithSliceWeights(map[model.SliceType]float64{model.SliceEMBB: 1}))
	ue := newUE(1, 12, model.SliceEMBB, 150)
	require.NoError(t, c.RegisterUE(ue))
	require.NoError(t, c.Step(0.1))

	alloc, tick := c.Allocation()
	assert.Equal(t, uint64(1), tick)
	assert.Equal(t, 100, alloc[1].Downlink)
	assert.Equal(t, 0, alloc[1].Uplink)
	assert.Equal(t, 100, c.AllocatedDLPRB())
	assert.Equal(t, 1.0, c.CurrentDLLoad())
	assert.Equal(t, 0.0, c.CurrentULLoad())
	assert.InDelta(t, 100.0/120.0, c.CurrentLoad(), 1e-12)

	assert.Equal(t, 22, ue.DownlinkMCSIndex)
	assert.Equal(t, throughput.Estimate(6, 666, 100), ue.DownlinkBitrate)

	demand, _ := c.DLDemand()
	assert.Equal(t, 150, demand[1])
	tput, _ := c.DLThroughputPerPRB()
	assert.Equal(t, perPRBCQI12, tput[1])
}

// two satisfied UEs, the slack stays unused
func TestScenarioUnderSubscribed(t *testing.T) {
	c := newTestCell(t, 20, WithSliceWeights(map[model.SliceType]float64{model.SliceEMBB: 1}))
	require.NoError(t, c.RegisterUE(newUE(1, 12, model.SliceEMBB, 10)))
	require.NoError(t, c.RegisterUE(newUE(2, 12, model.SliceEMBB, 5)))
	require.NoError(t, c.Step(0.1))

	alloc, _ := c.Allocation()
	assert.Equal(t, 10, alloc[1].Downlink)
	assert.Equal(t, 5, alloc[2].Downlink)
	snap := c.Snapshot()
	assert.Equal(t, 5, snap.LeftoverPRB)
	assert.Equal(t, 5, snap.DroppedPRB)
}

// the cap holds whatever the leftover
func TestScenarioCap(t *testing.T) {
	c := newTestCell(t, 50,
		WithSliceWeights(map[model.SliceType]float64{model.SliceEMBB: 1}),
		WithPRBPerUECap(intPtr(5)))
	require.NoError(t, c.RegisterUE(newUE(1, 12, model.SliceEMBB, 20)))
	require.NoError(t, c.Step(0.1))

	alloc, _ := c.Allocation()
	assert.Equal(t, 5, alloc[1].Downlink)
	assert.Equal(t, 45, c.Snapshot().DroppedPRB)
}

// unusable CQI keeps the UE out of the allocation and its rates untouched
func TestScenarioUnusableCQI(t *testing.T) {
	c := newTestCell(t, 100)
	good := newUE(1, 12, model.SliceEMBB, 10)
	bad := newUE(2, 12, model.SliceEMBB, 10)
	require.NoError(t, c.RegisterUE(good))
	require.NoError(t, c.RegisterUE(bad))
	require.NoError(t, c.Step(0.1))
	previous := bad.DownlinkBitrate
	require.Greater(t, previous, 0.0)

	bad.DownlinkCQI = 0
	require.NoError(t, c.Step(0.1))
	assert.Equal(t, mcs.Unset, bad.DownlinkMCSIndex)
	assert.Nil(t, bad.DownlinkMCS)
	alloc, _ := c.Allocation()
	assert.Equal(t, 0, alloc[2].Downlink)
	assert.Equal(t, previous, bad.DownlinkBitrate)
	demand, _ := c.DLDemand()
	_, ok := demand[2]
	assert.False(t, ok)

	bad.DownlinkCQI = 16
	require.NoError(t, c.Step(0.1))
	assert.Equal(t, mcs.Unset, bad.DownlinkMCSIndex)
}

func TestResetRatesOnMCSLoss(t *testing.T) {
	c := newTestCell(t, 100, WithResetRatesOnMCSLoss(true))
	ue := newUE(1, 12, model.SliceEMBB, 10)
	require.NoError(t, c.RegisterUE(ue))
	require.NoError(t, c.Step(0.1))
	require.Greater(t, ue.DownlinkBitrate, 0.0)

	ue.DownlinkCQI = 0
	require.NoError(t, c.Step(0.1))
	assert.Equal(t, 0.0, ue.DownlinkBitrate)
	assert.Equal(t, 0.0, ue.DownlinkLatency)
}

func TestBufferDrain(t *testing.T) {
	c := newTestCell(t, 100, WithSliceWeights(map[model.SliceType]float64{model.SliceEMBB: 1}))
	ue := newUE(1, 12, model.SliceEMBB, 10)
	buf := 1e6
	ue.DLBufferBytes = &buf
	require.NoError(t, c.RegisterUE(ue))
	require.NoError(t, c.Step(0.1))

	bitrate := throughput.Estimate(6, 666, 10)
	assert.Equal(t, bitrate, ue.DownlinkBitrate)
	remaining := 1e6 - bitrate/8*0.1
	assert.InDelta(t, remaining, *ue.DLBufferBytes, 1e-6)
	assert.InDelta(t, remaining/(bitrate/8), ue.DownlinkLatency, 1e-9)
}

func TestUplinkSignalStrengthReplaced(t *testing.T) {
	c := newTestCell(t, 100)
	ue1 := newUE(1, 12, model.SliceEMBB, 10)
	ue2 := newUE(2, 12, model.SliceEMBB, 10)
	require.NoError(t, c.RegisterUE(ue1))
	require.NoError(t, c.RegisterUE(ue2))
	require.NoError(t, c.Step(0.1))

	strength, _ := c.UplinkSignalStrength()
	require.Len(t, strength, 2)
	expected := 23 - signal.UrbanNLOSPathLoss(141.4213562373095, 3.5)
	assert.InDelta(t, expected, strength[1], 1e-9)

	c.DeregisterUE(ue2)
	require.NoError(t, c.Step(0.1))
	strength, tick := c.UplinkSignalStrength()
	assert.Equal(t, uint64(2), tick)
	assert.Len(t, strength, 1)
}

func TestSlicesAndLeftover(t *testing.T) {
	c := newTestCell(t, 100)
	require.NoError(t, c.RegisterUE(newUE(1, 12, model.SliceEMBB, 20)))
	require.NoError(t, c.RegisterUE(newUE(2, 12, model.SliceURLLC, 10)))
	require.NoError(t, c.RegisterUE(newUE(3, 12, model.SliceMMTC, 40)))
	require.NoError(t, c.Step(0.1))

	budgets, _ := c.SliceBudgets()
	assert.Equal(t, map[model.SliceType]int{model.SliceEMBB: 60, model.SliceURLLC: 30, model.SliceMMTC: 10}, budgets)

	alloc, _ := c.Allocation()
	assert.Equal(t, 20, alloc[1].Downlink)
	assert.Equal(t, 10, alloc[2].Downlink)
	// 10 from its own slice and 30 of the 60 released by eMBB and URLLC
	assert.Equal(t, 40, alloc[3].Downlink)
	assert.Equal(t, 70, c.AllocatedDLPRB())
}

func TestControllerSetters(t *testing.T) {
	c := newTestCell(t, 100)
	require.NoError(t, c.RegisterUE(newUE(1, 12, model.SliceMMTC, 100)))

	require.NoError(t, c.Step(0.1))
	alloc, _ := c.Allocation()
	assert.Equal(t, 10, alloc[1].Downlink)

	weights := map[model.SliceType]float64{model.SliceEMBB: 2, model.SliceMMTC: 2}
	require.NoError(t, c.SetSliceWeights(weights))
	weights[model.SliceMMTC] = 0
	assert.Equal(t, 2.0, c.SliceWeights()[model.SliceMMTC])

	require.NoError(t, c.Step(0.1))
	alloc, _ = c.Allocation()
	assert.Equal(t, 50, alloc[1].Downlink)

	assert.Error(t, c.SetPRBPerUECap(intPtr(-1)))
	limit := 7
	require.NoError(t, c.SetPRBPerUECap(&limit))
	limit = 1
	assert.Equal(t, 7, *c.PRBPerUECap())
	require.NoError(t, c.Step(0.1))
	alloc, _ = c.Allocation()
	assert.Equal(t, 7, alloc[1].Downlink)

	require.NoError(t, c.SetPRBPerUECap(nil))
	assert.Nil(t, c.PRBPerUECap())
}

func TestSetSliceWeightsNonFinite(t *testing.T) {
	c := newTestCell(t, 100)
	require.NoError(t, c.RegisterUE(newUE(1, 12, model.SliceEMBB, 40)))
	require.NoError(t, c.SetSliceWeights(map[model.SliceType]float64{model.SliceEMBB: 0.7, model.SliceURLLC: 0.3}))

	for _, w := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		err := c.SetSliceWeights(map[model.SliceType]float64{model.SliceEMBB: w, model.SliceURLLC: 0.3})
		assert.True(t, errors.IsInvalid(err), "weight %v", w)
	}
	assert.Equal(t, 0.7, c.SliceWeights()[model.SliceEMBB])

	require.NoError(t, c.Step(0.1))
	alloc, _ := c.Allocation()
	assert.Equal(t, 40, alloc[1].Downlink)
}

func TestConfigIsCopy(t *testing.T) {
	c := newTestCell(t, 10, WithSliceWeights(map[model.SliceType]float64{model.SliceEMBB: 1}))
	require.NoError(t, c.RegisterUE(newUE(1, 12, model.SliceEMBB, 100)))

	cfg := c.Config()
	cfg.MaxDLPRB = 1
	cfg.CellID = "other"
	assert.Equal(t, 10, c.Config().MaxDLPRB)
	assert.Equal(t, "cell1", c.ID())

	require.NoError(t, c.Step(0.1))
	assert.Equal(t, 10, c.AllocatedDLPRB())
}

func TestConcurrentControllerWrites(t *testing.T) {
	c := newTestCell(t, 100)
	for i := 1; i <= 5; i++ {
		require.NoError(t, c.RegisterUE(newUE(types.IMSI(i), 12, model.SliceEMBB, 30)))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, c.SetSliceWeights(map[model.SliceType]float64{model.SliceEMBB: float64(i%3 + 1), model.SliceURLLC: 1}))
			_ = c.SetPRBPerUECap(intPtr(i % 40))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, c.Step(0.01))
			assert.LessOrEqual(t, c.AllocatedDLPRB(), 100)
		}
	}()
	wg.Wait()
}

func TestSnapshotJSON(t *testing.T) {
	c := newTestCell(t, 100)
	require.NoError(t, c.RegisterUE(newUE(2, 12, model.SliceEMBB, 10)))
	require.NoError(t, c.RegisterUE(newUE(1, 9, model.SliceURLLC, 5)))
	require.NoError(t, c.Step(0.1))

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"cell_id", "max_dl_prb", "max_ul_prb", "prb_ue_allocation_dict", "allocated_dl_prb",
		"allocated_ul_prb", "current_dl_load", "current_ul_load", "current_load", "connected_ue_list", "tick"} {
		assert.Contains(t, fields, key)
	}

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, []types.IMSI{1, 2}, snap.ConnectedUEs)
	assert.Equal(t, "cell1", snap.CellID)
	assert.Equal(t, 100, snap.MaxDLPRB)
	assert.Equal(t, c.AllocatedDLPRB(), snap.AllocatedDLPRB)
	assert.Equal(t, uint64(1), snap.Tick)
}
