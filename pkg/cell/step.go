package cell

import (
	"github.com/nfvri/ran-scheduler/pkg/bandwidth"
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/signal"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Step advances the cell by dt seconds: uplink signal estimation, MCS
// selection, PRB allocation and throughput estimation, in that order.
func (c *Cell) Step(dt float64) error {
	if c.selector == nil || c.strategy == nil {
		return errors.NewInvalid("cell %s was not created with NewCell", c.cfg.CellID)
	}
	if dt < 0 {
		return errors.NewInvalid("cell %s: negative time step %v", c.cfg.CellID, dt)
	}
	weights, limit := c.controls()

	c.mu.Lock()
	defer c.mu.Unlock()

	ues := c.sortedUEs()
	c.monitorSignalStrength(ues)
	c.selectMCS(ues)
	c.allocatePRB(ues, weights, limit)
	c.estimateBitrateAndLatency(ues, dt)
	c.tick++
	return nil
}

func (c *Cell) monitorSignalStrength(ues []*model.UE) {
	site := c.bs.Position()
	freq := c.cfg.CarrierFrequencyGHz()
	strength := make(map[types.IMSI]float64, len(ues))
	for _, ue := range ues {
		strength[ue.IMSI] = signal.UplinkStrength(ue, site, freq, c.pathLoss)
	}
	c.ulSignal = strength
}

func (c *Cell) selectMCS(ues []*model.UE) {
	for _, ue := range ues {
		c.selector.Apply(ue)
	}
}

func (c *Cell) allocatePRB(ues []*model.UE, weights map[model.SliceType]float64, limit *int) {
	for _, ue := range ues {
		c.allocation[ue.IMSI] = PRBAllocation{}
	}

	req := &bandwidth.Request{
		Budget:  c.cfg.MaxDLPRB,
		Weights: weights,
		Cap:     limit,
	}
	demand := make(map[types.IMSI]int, len(ues))
	tput := make(map[types.IMSI]float64, len(ues))
	for _, ue := range ues {
		d, ok := bandwidth.ComputeDemand(ue)
		if !ok {
			log.Debugf("Cell %s: UE %d has no downlink MCS, skipping", c.cfg.CellID, ue.IMSI)
			continue
		}
		req.Demands = append(req.Demands, d)
		demand[d.IMSI] = d.Want
		tput[d.IMSI] = d.ThroughputPerPRB
	}
	c.dlDemand = demand
	c.dlTputPerPRB = tput

	if len(req.Demands) == 0 {
		c.sliceBudgets = map[model.SliceType]int{}
		c.leftover, c.dropped = 0, 0
		return
	}

	alloc := c.strategy.Allocate(req)
	for imsi, prbs := range alloc.PerUE {
		a := c.allocation[imsi]
		a.Downlink = prbs
		c.allocation[imsi] = a
	}
	c.sliceBudgets = alloc.SliceBudgets
	c.leftover = alloc.Leftover
	c.dropped = alloc.Dropped
	log.Debugf("Cell %s: allocated %d/%d DL PRBs to %d UEs, %d leftover dropped",
		c.cfg.CellID, alloc.Total, c.cfg.MaxDLPRB, len(req.Demands), alloc.Dropped)
}

func (c *Cell) estimateBitrateAndLatency(ues []*model.UE, dt float64) {
	for _, ue := range ues {
		c.estimator.Apply(ue, c.allocation[ue.IMSI].Downlink, dt)
	}
}
