package throughput

import (
	"github.com/nfvri/ran-scheduler/pkg/model"
	log "github.com/sirupsen/logrus"
)

const (
	subcarriersPerPRB = 12
	symbolsPerSlot    = 14
	// slots per second at 15kHz subcarrier spacing
	slotsPerSecond = 1000
	codeRateScale  = 1024.0
)

// Estimate returns the achievable bitrate in bits/s of prbs resource blocks
// carrying modulationOrder bits per symbol at codeRate/1024
func Estimate(modulationOrder int, codeRate float64, prbs int) float64 {
	if prbs <= 0 || modulationOrder <= 0 || codeRate <= 0 {
		return 0
	}
	return float64(modulationOrder) * (codeRate / codeRateScale) *
		subcarriersPerPRB * symbolsPerSlot * float64(prbs) * slotsPerSecond
}

// PerPRB is the bitrate a single PRB carries with entry
func PerPRB(entry *model.MCSEntry) float64 {
	if entry == nil {
		return 0
	}
	return Estimate(entry.ModulationOrder, entry.TargetCodeRate, 1)
}

// Drain sends up to dt seconds of traffic at bitrate out of the UE downlink
// buffer and updates its queueing delay. UEs without a buffer are left alone.
func Drain(ue *model.UE, bitrate, dt float64) {
	if ue.DLBufferBytes == nil {
		return
	}
	bytesPerSecond := bitrate / 8
	sendable := bytesPerSecond * dt
	buffer := *ue.DLBufferBytes
	transmitted := sendable
	if buffer < transmitted {
		transmitted = buffer
	}
	if transmitted < 0 {
		transmitted = 0
	}
	buffer -= transmitted
	*ue.DLBufferBytes = buffer

	if bytesPerSecond > 0 {
		ue.DownlinkLatency = buffer / bytesPerSecond
	} else {
		ue.DownlinkLatency = 0
	}
	log.Debugf("UE %d: sent %.0f bytes, %.0f queued, delay %.4fs", ue.IMSI, transmitted, buffer, ue.DownlinkLatency)
}

// Estimator writes bitrate and latency for UEs with a resolved MCS
type Estimator struct {
	// ResetOnMCSLoss zeroes bitrate and latency of UEs without MCS
	// instead of leaving the previous tick's values in place
	ResetOnMCSLoss bool
}

// Apply updates ue for an allocation of prbs over dt seconds
func (e *Estimator) Apply(ue *model.UE, prbs int, dt float64) {
	if ue.DownlinkMCS == nil {
		if e.ResetOnMCSLoss {
			ue.DownlinkBitrate = 0
			ue.DownlinkLatency = 0
		}
		return
	}
	bitrate := Estimate(ue.DownlinkMCS.ModulationOrder, ue.DownlinkMCS.TargetCodeRate, prbs)
	ue.DownlinkBitrate = bitrate
	Drain(ue, bitrate, dt)
}
