// SPDX-FileCopyrightText: 2021-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package signal

import (
	"math"

	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/utils"
	log "github.com/sirupsen/logrus"
)

// thermal noise power spectral density at 290K in dBm/Hz
const thermalNoiseDensityDBm = -174.0

// ReceivedPower returns the power in dBm that reaches a receiver distanceM
// meters away from a transmitter of txPowerDBm on a carrier of frequencyGHz
func ReceivedPower(txPowerDBm, distanceM, frequencyGHz float64, pl PathLossFunc) float64 {
	return txPowerDBm - pl(distanceM, frequencyGHz)
}

// UplinkStrength is the power received by the site of bs from ue
func UplinkStrength(ue *model.UE, bs model.Position, frequencyGHz float64, pl PathLossFunc) float64 {
	d := utils.Distance(ue.Position(), bs)
	rp := ReceivedPower(ue.UplinkTransmitPowerDBm, d, frequencyGHz, pl)
	log.Debugf("UE %d: distance %.1fm uplink strength %.2fdBm", ue.IMSI, d, rp)
	return rp
}

// DownlinkStrength is the RSRP of cell measured at position pos
func DownlinkStrength(cell *model.CellConfig, site, pos model.Position, pl PathLossFunc) float64 {
	return ReceivedPower(cell.TransmitPowerDBm, utils.Distance(site, pos), cell.CarrierFrequencyGHz(), pl)
}

// ThermalNoiseDBm returns the noise floor of a receiver with the given
// bandwidth and noise figure
func ThermalNoiseDBm(bandwidthHz, noiseFigureDB float64) float64 {
	if bandwidthHz <= 0 {
		return math.Inf(-1)
	}
	return thermalNoiseDensityDBm + 10*math.Log10(bandwidthHz) + noiseFigureDB
}

// SINR returns the signal to interference plus noise ratio in dB. All inputs in dBm.
func SINR(signalDBm, noiseDBm float64, interferenceDBm ...float64) float64 {
	denom := DbmToMw(noiseDBm)
	for _, i := range interferenceDBm {
		denom += DbmToMw(i)
	}
	if denom <= 0 {
		return math.Inf(1)
	}
	return signalDBm - MwToDbm(denom)
}

func DbmToMw(dbm float64) float64 {
	return math.Pow(10, dbm/10)
}

func MwToDbm(mw float64) float64 {
	return 10 * math.Log10(mw)
}
