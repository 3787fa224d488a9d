// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package handover

import (
	"context"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// A3 is the only supported handover type
const A3 HOType = "A3"

// NewHOController returns the hanover controller
func NewHOController(hoType HOType, cells map[string]CellInfo, hysteresisDB float64) HOController {
	return &hoController{
		hoType:     hoType,
		handler:    NewA3HandoverHandler(cells, hysteresisDB),
		inputChan:  make(chan MeasurementReport),
		outputChan: make(chan HandoverDecision),
	}
}

// HOController is an abstraction of the handover controller
type HOController interface {
	// Start starts handover controller; it stops with ctx
	Start(ctx context.Context) error

	// GetInputChan returns input channel
	GetInputChan() chan MeasurementReport

	// GetOutputChan returns output channel
	GetOutputChan() chan HandoverDecision

	// Evaluate pushes one report and waits for its decision
	Evaluate(ctx context.Context, report MeasurementReport) (HandoverDecision, error)
}

// HOType is the type of hanover - currently it is string
type HOType string

type hoController struct {
	hoType     HOType
	handler    *A3HandoverHandler
	inputChan  chan MeasurementReport
	outputChan chan HandoverDecision
}

func (h *hoController) Start(ctx context.Context) error {
	switch h.hoType {
	case A3:
		h.startA3HandoverHandler(ctx)
		return nil
	default:
		return errors.NewInvalid("unsupported handover type %q", h.hoType)
	}
}

func (h *hoController) startA3HandoverHandler(ctx context.Context) {
	log.Info("Handover controller starting with A3HandoveHandler")
	handler := NewA3Handover(h.handler)

	handler.Start(ctx)
	// for input
	go h.forwardReportToA3HandoverHandler(ctx, handler)
	//for output
	go h.forwardHandoverDecision(ctx, handler)
}

func (h *hoController) forwardReportToA3HandoverHandler(ctx context.Context, handler A3Handover) {
	for {
		select {
		case <-ctx.Done():
			return
		case report := <-h.inputChan:
			log.Debugf("[input] Measurement report for HO decision: serving %s, %d neighbors", report.ServingCell, len(report.Neighbors))
			handler.PushMeasurementEventA3(ctx, report)
		}
	}
}

func (h *hoController) forwardHandoverDecision(ctx context.Context, handler A3Handover) {
	for {
		select {
		case <-ctx.Done():
			return
		case hoDecision := <-handler.GetOutputChan():
			log.Debugf("[output] Handover decision: %s -> %q", hoDecision.ServingCell, hoDecision.TargetCell)
			select {
			case h.outputChan <- hoDecision:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (h *hoController) GetInputChan() chan MeasurementReport {
	return h.inputChan
}

func (h *hoController) GetOutputChan() chan HandoverDecision {
	return h.outputChan
}

func (h *hoController) Evaluate(ctx context.Context, report MeasurementReport) (HandoverDecision, error) {
	if err := ctx.Err(); err != nil {
		return HandoverDecision{}, err
	}
	select {
	case h.inputChan <- report:
	case <-ctx.Done():
		return HandoverDecision{}, ctx.Err()
	}
	select {
	case decision := <-h.outputChan:
		return decision, nil
	case <-ctx.Done():
		return HandoverDecision{}, ctx.Err()
	}
}
