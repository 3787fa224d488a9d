package cell

import (
	"encoding/json"

	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/statistics"
	"github.com/nfvri/ran-scheduler/pkg/utils"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
)

// AllocatedDLPRB sums the downlink PRBs of the connected UEs
func (c *Cell) AllocatedDLPRB() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dl, _ := c.allocated()
	return dl
}

// AllocatedULPRB sums the uplink PRBs of the connected UEs
func (c *Cell) AllocatedULPRB() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ul := c.allocated()
	return ul
}

// AllocatedPRB sums both directions
func (c *Cell) AllocatedPRB() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	dl, ul := c.allocated()
	return dl + ul
}

// CurrentDLLoad is the share of downlink PRBs in use
func (c *Cell) CurrentDLLoad() float64 {
	return statistics.Load(c.AllocatedDLPRB(), c.cfg.MaxDLPRB)
}

// CurrentULLoad is the share of uplink PRBs in use
func (c *Cell) CurrentULLoad() float64 {
	return statistics.Load(c.AllocatedULPRB(), c.cfg.MaxULPRB)
}

// CurrentLoad is the share of all PRBs in use
func (c *Cell) CurrentLoad() float64 {
	return statistics.Load(c.AllocatedPRB(), c.cfg.MaxPRB)
}

func (c *Cell) allocated() (int, int) {
	dl, ul := 0, 0
	for imsi := range c.ues {
		a := c.allocation[imsi]
		dl += a.Downlink
		ul += a.Uplink
	}
	return dl, ul
}

// Tick is the number of completed steps. Every observability view below
// belongs to the tick returned alongside it.
func (c *Cell) Tick() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tick
}

// Allocation returns a copy of the per-UE PRB allocation
func (c *Cell) Allocation() (map[types.IMSI]PRBAllocation, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[types.IMSI]PRBAllocation, len(c.allocation))
	for k, v := range c.allocation {
		out[k] = v
	}
	return out, c.tick
}

// DLDemand returns the downlink PRB demand of each UE with an MCS
func (c *Cell) DLDemand() (map[types.IMSI]int, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMap(c.dlDemand), c.tick
}

// DLThroughputPerPRB returns the bits/s one PRB carries for each UE with an MCS
func (c *Cell) DLThroughputPerPRB() (map[types.IMSI]float64, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMap(c.dlTputPerPRB), c.tick
}

// UplinkSignalStrength returns the received uplink power in dBm of each UE
func (c *Cell) UplinkSignalStrength() (map[types.IMSI]float64, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMap(c.ulSignal), c.tick
}

// SliceBudgets returns the DL PRB partition of the last allocation
func (c *Cell) SliceBudgets() (map[model.SliceType]int, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMap(c.sliceBudgets), c.tick
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Snapshot is the externally visible state of a cell after one tick
type Snapshot struct {
	model.CellConfig
	Tick                 uint64                       `json:"tick"`
	PositionX            float64                      `json:"position_x"`
	PositionY            float64                      `json:"position_y"`
	PathLossModel        string                       `json:"path_loss_model"`
	PRBUEAllocation      map[types.IMSI]PRBAllocation `json:"prb_ue_allocation_dict"`
	AllocatedDLPRB       int                          `json:"allocated_dl_prb"`
	AllocatedULPRB       int                          `json:"allocated_ul_prb"`
	CurrentDLLoad        float64                      `json:"current_dl_load"`
	CurrentULLoad        float64                      `json:"current_ul_load"`
	CurrentLoad          float64                      `json:"current_load"`
	ConnectedUEs         []types.IMSI                 `json:"connected_ue_list"`
	DLTotalPRBDemand     map[types.IMSI]int           `json:"dl_total_prb_demand"`
	DLThroughputPerPRB   map[types.IMSI]float64       `json:"dl_throughput_per_prb_map"`
	UplinkSignalStrength map[types.IMSI]float64       `json:"ue_uplink_signal_strength_dict"`
	SliceWeights         map[model.SliceType]float64  `json:"slice_weights"`
	SliceBudgets         map[model.SliceType]int      `json:"slice_budgets"`
	PRBPerUECap          *int                         `json:"prb_per_ue_cap"`
	LeftoverPRB          int                          `json:"leftover_prb"`
	DroppedPRB           int                          `json:"dropped_prb"`
}

// Snapshot takes a consistent copy of the cell state
func (c *Cell) Snapshot() *Snapshot {
	weights, limit := c.controls()

	c.mu.RLock()
	defer c.mu.RUnlock()
	dl, ul := c.allocated()
	pos := c.bs.Position()
	return &Snapshot{
		CellConfig:           c.cfg,
		Tick:                 c.tick,
		PositionX:            pos.X,
		PositionY:            pos.Y,
		PathLossModel:        c.pathLossName,
		PRBUEAllocation:      copyMap(c.allocation),
		AllocatedDLPRB:       dl,
		AllocatedULPRB:       ul,
		CurrentDLLoad:        statistics.Load(dl, c.cfg.MaxDLPRB),
		CurrentULLoad:        statistics.Load(ul, c.cfg.MaxULPRB),
		CurrentLoad:          statistics.Load(dl+ul, c.cfg.MaxPRB),
		ConnectedUEs:         utils.SortedKeys(c.ues),
		DLTotalPRBDemand:     copyMap(c.dlDemand),
		DLThroughputPerPRB:   copyMap(c.dlTputPerPRB),
		UplinkSignalStrength: copyMap(c.ulSignal),
		SliceWeights:         weights,
		SliceBudgets:         copyMap(c.sliceBudgets),
		PRBPerUECap:          limit,
		LeftoverPRB:          c.leftover,
		DroppedPRB:           c.dropped,
	}
}

// MarshalJSON renders the cell as its snapshot
func (c *Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Snapshot())
}
