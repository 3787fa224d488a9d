package handover

import (
	"context"
	"sync"

	"github.com/nfvri/ran-scheduler/pkg/model"
	log "github.com/sirupsen/logrus"
)

// CellInfo holds the A3 parameters of a candidate cell
type CellInfo struct {
	CellID                  string
	CellIndividualOffsetDBm float64
	FrequencyPriority       int
	QrxLevelMin             float64
}

// CellInfoFromConfig extracts the A3 parameters of a cell configuration
func CellInfoFromConfig(cfg model.CellConfig) CellInfo {
	return CellInfo{
		CellID:                  cfg.CellID,
		CellIndividualOffsetDBm: cfg.CellIndividualOffsetDBm,
		FrequencyPriority:       cfg.FrequencyPriority,
		QrxLevelMin:             cfg.QrxLevelMin,
	}
}

// MeasurementReport carries the downlink RSRP a UE sees from its serving
// cell and its neighbors, in dBm
type MeasurementReport struct {
	UE          *model.UE
	ServingCell string
	ServingRSRP float64
	Neighbors   map[string]float64
}

// HandoverDecision is the outcome of evaluating a measurement report.
// TargetCell is empty when no neighbor satisfies the A3 condition.
type HandoverDecision struct {
	UE          *model.UE
	ServingCell string
	TargetCell  string
	Feasible    bool
}

// NewA3HandoverHandler returns A3HandoverHandler object
func NewA3HandoverHandler(cells map[string]CellInfo, hysteresisDB float64) *A3HandoverHandler {
	h := &A3HandoverHandler{
		Chans: A3HandoverChannel{
			InputChan:  make(chan MeasurementReport),
			OutputChan: make(chan HandoverDecision),
		},
		cells:        map[string]CellInfo{},
		HysteresisDB: hysteresisDB,
	}
	for id, info := range cells {
		h.cells[id] = info
	}
	return h
}

// A3HandoverHandler is A3 handover handler
type A3HandoverHandler struct {
	Chans        A3HandoverChannel
	HandlerMutex sync.RWMutex
	HysteresisDB float64
	cells        map[string]CellInfo
}

// A3HandoverChannel struct has channels used in A3 handover handler
type A3HandoverChannel struct {
	InputChan  chan MeasurementReport
	OutputChan chan HandoverDecision
}

// SetCell adds or replaces the A3 parameters of a cell
func (h *A3HandoverHandler) SetCell(info CellInfo) {
	h.HandlerMutex.Lock()
	defer h.HandlerMutex.Unlock()
	h.cells[info.CellID] = info
}

// Run answers every report with a decision until ctx is done
func (h *A3HandoverHandler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case report := <-h.Chans.InputChan:
			decision := h.Decide(report)
			select {
			case h.Chans.OutputChan <- decision:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Decide applies the A3 event: a neighbor n qualifies when
// RSRP_n + CIO_n > RSRP_s + CIO_s + hysteresis and RSRP_n >= QrxLevelMin_n.
// The neighbor with the highest offset RSRP wins, then the highest frequency
// priority, then the lowest cell id.
func (h *A3HandoverHandler) Decide(report MeasurementReport) HandoverDecision {
	h.HandlerMutex.RLock()
	defer h.HandlerMutex.RUnlock()

	decision := HandoverDecision{UE: report.UE, ServingCell: report.ServingCell}
	threshold := report.ServingRSRP + h.cells[report.ServingCell].CellIndividualOffsetDBm + h.HysteresisDB

	var best *CellInfo
	bestOffset := 0.0
	for id, rsrp := range report.Neighbors {
		if id == report.ServingCell {
			continue
		}
		info, ok := h.cells[id]
		if !ok {
			continue
		}
		offset := rsrp + info.CellIndividualOffsetDBm
		if rsrp < info.QrxLevelMin || offset <= threshold {
			continue
		}
		if best == nil || better(offset, info, bestOffset, *best) {
			candidate := info
			best = &candidate
			bestOffset = offset
		}
	}

	if best != nil {
		decision.TargetCell = best.CellID
		decision.Feasible = true
		if report.UE != nil {
			log.Debugf("UE %d: A3 event from %s to %s", report.UE.IMSI, report.ServingCell, best.CellID)
		}
	}
	return decision
}

func better(offset float64, info CellInfo, bestOffset float64, best CellInfo) bool {
	if offset != bestOffset {
		return offset > bestOffset
	}
	if info.FrequencyPriority != best.FrequencyPriority {
		return info.FrequencyPriority > best.FrequencyPriority
	}
	return info.CellID < best.CellID
}
