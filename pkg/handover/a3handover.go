// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package handover

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// A3Handover is an abstraction of A3 handover
type A3Handover interface {
	// Start starts the A3 handover module
	Start(ctx context.Context)

	// GetInputChan returns the channel to push measurement
	GetInputChan() chan MeasurementReport

	// GetOutputChan returns the channel to get handover event
	GetOutputChan() chan HandoverDecision

	// PushMeasurementEventA3 pushes measurement to the input channel
	PushMeasurementEventA3(ctx context.Context, report MeasurementReport)
}

type a3Handover struct {
	a3HandoverHandler *A3HandoverHandler
}

// NewA3Handover returns an A3 handover object
func NewA3Handover(handler *A3HandoverHandler) A3Handover {
	return &a3Handover{
		a3HandoverHandler: handler,
	}
}

func (h *a3Handover) Start(ctx context.Context) {
	log.Info("A3 handover handler starting")
	go h.a3HandoverHandler.Run(ctx)
}

func (h *a3Handover) GetInputChan() chan MeasurementReport {
	return h.a3HandoverHandler.Chans.InputChan
}

func (h *a3Handover) GetOutputChan() chan HandoverDecision {
	return h.a3HandoverHandler.Chans.OutputChan
}

func (h *a3Handover) PushMeasurementEventA3(ctx context.Context, report MeasurementReport) {
	select {
	case h.a3HandoverHandler.Chans.InputChan <- report:
	case <-ctx.Done():
	}
}
