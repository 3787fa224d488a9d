package cell

import (
	"sync"

	"github.com/nfvri/ran-scheduler/pkg/bandwidth"
	"github.com/nfvri/ran-scheduler/pkg/mcs"
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/signal"
	"github.com/nfvri/ran-scheduler/pkg/throughput"
	"github.com/nfvri/ran-scheduler/pkg/utils"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Positioner is anything with a fixed location, typically the hosting base station
type Positioner interface {
	Position() model.Position
}

// PRBAllocation is the number of PRBs granted to a UE in each direction
type PRBAllocation struct {
	Downlink int `json:"downlink"`
	Uplink   int `json:"uplink"`
}

// Cell is one radio cell scheduling the downlink PRBs of its connected UEs
type Cell struct {
	cfg model.CellConfig

	bs           Positioner
	pathLossName string
	pathLoss     signal.PathLossFunc
	selector     *mcs.Selector
	strategy     bandwidth.AllocationStrategy
	estimator    throughput.Estimator

	// written by external controllers between ticks
	ctrlMu       sync.Mutex
	sliceWeights map[model.SliceType]float64
	prbPerUECap  *int

	mu           sync.RWMutex
	tick         uint64
	ues          map[types.IMSI]*model.UE
	allocation   map[types.IMSI]PRBAllocation
	ulSignal     map[types.IMSI]float64
	dlDemand     map[types.IMSI]int
	dlTputPerPRB map[types.IMSI]float64
	sliceBudgets map[model.SliceType]int
	leftover     int
	dropped      int
}

// NewCell creates a cell hosted by bs. The configuration must be complete.
func NewCell(bs Positioner, cfg model.CellConfig, opts ...Option) (*Cell, error) {
	if bs == nil {
		return nil, errors.NewInvalid("cell %s: base station is required", cfg.CellID)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{pathLossModel: model.DefaultPathLossModel}
	for _, opt := range opts {
		opt(o)
	}
	if o.tables == nil {
		tables := model.DefaultTables()
		o.tables = &tables
	}
	if o.sliceWeights == nil {
		o.sliceWeights = model.DefaultSliceWeights()
	}
	if err := model.CheckSliceWeights(o.sliceWeights); err != nil {
		return nil, err
	}
	if cfg.SchedulerPolicy == "" {
		cfg.SchedulerPolicy = model.DefaultSchedulerPolicy
	}

	pl, err := signal.GetPathLossModel(o.pathLossModel)
	if err != nil {
		return nil, err
	}
	selector, err := mcs.NewSelector(*o.tables)
	if err != nil {
		return nil, err
	}
	strategy, err := bandwidth.NewStrategy(cfg.SchedulerPolicy)
	if err != nil {
		return nil, err
	}

	c := &Cell{
		cfg:          cfg,
		bs:           bs,
		pathLossName: o.pathLossModel,
		pathLoss:     pl,
		selector:     selector,
		strategy:     strategy,
		estimator:    throughput.Estimator{ResetOnMCSLoss: o.resetRatesOnMCSLoss},
		sliceWeights: o.sliceWeights,
		prbPerUECap:  o.prbPerUECap,
		ues:          map[types.IMSI]*model.UE{},
		allocation:   map[types.IMSI]PRBAllocation{},
		ulSignal:     map[types.IMSI]float64{},
		dlDemand:     map[types.IMSI]int{},
		dlTputPerPRB: map[types.IMSI]float64{},
		sliceBudgets: map[model.SliceType]int{},
	}
	log.Infof("Created cell %s at %v, %d DL PRBs, policy %s", c.cfg.CellID, bs.Position(), c.cfg.MaxDLPRB, strategy.Name())
	return c, nil
}

// ID returns the cell id
func (c *Cell) ID() string {
	return c.cfg.CellID
}

// Config returns a copy of the cell configuration
func (c *Cell) Config() model.CellConfig {
	return c.cfg
}

// Position returns the location of the hosting base station
func (c *Cell) Position() model.Position {
	return c.bs.Position()
}

// PathLossModel returns the key of the path loss model in use
func (c *Cell) PathLossModel() string {
	return c.pathLossName
}

// RegisterUE connects ue to the cell with an empty allocation
func (c *Cell) RegisterUE(ue *model.UE) error {
	if ue == nil {
		return errors.NewInvalid("cell %s: cannot register a nil UE", c.cfg.CellID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ues[ue.IMSI] = ue
	c.allocation[ue.IMSI] = PRBAllocation{}
	ue.ServingCell = c.cfg.CellID
	log.Debugf("Cell %s: registered UE %d", c.cfg.CellID, ue.IMSI)
	return nil
}

// DeregisterUE releases the resources of ue and disconnects it. Removing a UE
// that is not connected is a no-op. Returns whether anything was removed.
func (c *Cell) DeregisterUE(ue *model.UE) bool {
	if ue == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	if _, ok := c.allocation[ue.IMSI]; ok {
		delete(c.allocation, ue.IMSI)
		log.Debugf("Cell %s: released resources for UE %d", c.cfg.CellID, ue.IMSI)
		removed = true
	} else {
		log.Warnf("Cell %s: no resources to release for UE %d", c.cfg.CellID, ue.IMSI)
	}

	if _, ok := c.ues[ue.IMSI]; ok {
		delete(c.ues, ue.IMSI)
		log.Debugf("Cell %s: deregistered UE %d", c.cfg.CellID, ue.IMSI)
		removed = true
	} else {
		log.Warnf("Cell %s: no UE %d to deregister", c.cfg.CellID, ue.IMSI)
	}

	if ue.ServingCell == c.cfg.CellID {
		ue.ServingCell = ""
	}
	return removed
}

// ConnectedUEs returns the connected UEs ordered by IMSI
func (c *Cell) ConnectedUEs() []*model.UE {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedUEs()
}

// NumUEs returns the number of connected UEs
func (c *Cell) NumUEs() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ues)
}

// IsConnected tells whether imsi is attached to the cell
func (c *Cell) IsConnected(imsi types.IMSI) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ues[imsi]
	return ok
}

func (c *Cell) sortedUEs() []*model.UE {
	ues := make([]*model.UE, 0, len(c.ues))
	for _, imsi := range utils.SortedKeys(c.ues) {
		ues = append(ues, c.ues[imsi])
	}
	return ues
}

// SetSliceWeights replaces the slice shares used from the next tick on.
// Weights need not sum to one but must be finite.
func (c *Cell) SetSliceWeights(weights map[model.SliceType]float64) error {
	if err := model.CheckSliceWeights(weights); err != nil {
		return errors.NewInvalid("cell %s: %v", c.cfg.CellID, err)
	}
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	c.sliceWeights = model.CopySliceWeights(weights)
	log.Infof("Cell %s: slice weights set to %v", c.cfg.CellID, weights)
	return nil
}

// SliceWeights returns a copy of the configured slice shares
func (c *Cell) SliceWeights() map[model.SliceType]float64 {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	return model.CopySliceWeights(c.sliceWeights)
}

// SetPRBPerUECap limits the downlink PRBs of any single UE, nil removes the limit
func (c *Cell) SetPRBPerUECap(limit *int) error {
	if limit != nil && *limit < 0 {
		return errors.NewInvalid("cell %s: per-UE PRB cap must not be negative", c.cfg.CellID)
	}
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	c.prbPerUECap = copyCap(limit)
	return nil
}

// PRBPerUECap returns a copy of the per-UE cap, nil when unlimited
func (c *Cell) PRBPerUECap() *int {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	return copyCap(c.prbPerUECap)
}

func (c *Cell) controls() (map[model.SliceType]float64, *int) {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	return model.CopySliceWeights(c.sliceWeights), copyCap(c.prbPerUECap)
}
