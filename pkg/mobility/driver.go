// SPDX-FileCopyrightText: 2022-present Intel Corporation
// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package mobility

import (
	"context"
	"sync"

	"github.com/nfvri/ran-scheduler/pkg/cell"
	"github.com/nfvri/ran-scheduler/pkg/handover"
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/utils"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Driver is an abstraction of an entity driving the UE mobility
type Driver interface {
	// Move advances the UE by its velocity over dt seconds
	Move(ue *model.UE, dt float64)

	// Handover moves a UE from its serving cell to the decided target
	Handover(ctx context.Context, hoDecision handover.HandoverDecision) error

	// GetHoCtrl returns the handover controller
	GetHoCtrl() handover.HOController

	// Handovers is the number of executed handovers
	Handovers() int
}

type driver struct {
	layout model.Layout
	cells  map[string]*cell.Cell
	hoCtrl handover.HOController

	mu        sync.Mutex
	handovers int
}

// NewMobilityDriver returns a driver moving UEs inside layout and handing them
// over between cells
func NewMobilityDriver(layout model.Layout, cells map[string]*cell.Cell, hoCtrl handover.HOController) Driver {
	return &driver{
		layout: layout,
		cells:  cells,
		hoCtrl: hoCtrl,
	}
}

func (d *driver) GetHoCtrl() handover.HOController {
	return d.hoCtrl
}

// Move applies position += velocity*dt. A UE reaching an edge of the layout
// bounces back; an axis with no extent is unbounded.
func (d *driver) Move(ue *model.UE, dt float64) {
	if dt <= 0 || (ue.Velocity.VX == 0 && ue.Velocity.VY == 0) {
		return
	}
	x := ue.Location.X + ue.Velocity.VX*dt
	y := ue.Location.Y + ue.Velocity.VY*dt
	if d.layout.Width > 0 {
		var sign float64
		x, sign = utils.Reflect(x, d.layout.Width)
		ue.Velocity.VX *= sign
	}
	if d.layout.Height > 0 {
		var sign float64
		y, sign = utils.Reflect(y, d.layout.Height)
		ue.Velocity.VY *= sign
	}
	ue.Location = model.Position{X: x, Y: y}
	log.Debugf("UE %d moved to %v", ue.IMSI, ue.Location)
}

// Handover handovers ue to target cell
func (d *driver) Handover(ctx context.Context, hoDecision handover.HandoverDecision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ue := hoDecision.UE
	if ue == nil || !hoDecision.Feasible || hoDecision.TargetCell == "" {
		return nil
	}
	if ue.ServingCell == hoDecision.TargetCell {
		return nil
	}

	tCell, ok := d.cells[hoDecision.TargetCell]
	if !ok {
		return errors.NewNotFound("target cell %s not found", hoDecision.TargetCell)
	}
	if sCell, ok := d.cells[hoDecision.ServingCell]; ok {
		sCell.DeregisterUE(ue)
	} else {
		log.Warnf("UE %d: source cell %s not found", ue.IMSI, hoDecision.ServingCell)
	}
	if err := tCell.RegisterUE(ue); err != nil {
		return err
	}

	d.mu.Lock()
	d.handovers++
	d.mu.Unlock()
	log.Debugf("HO is done successfully: %v from %s to %s", ue.IMSI, hoDecision.ServingCell, hoDecision.TargetCell)
	return nil
}

func (d *driver) Handovers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handovers
}
