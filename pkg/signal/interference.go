package signal

import (
	"math"

	"github.com/nfvri/ran-scheduler/pkg/model"
)

// Site is a transmitting cell at a fixed location
type Site struct {
	Cell     *model.CellConfig
	Position model.Position
}

// DownlinkSINR returns the SINR in dB at pos for the serving site. Every
// neighbor on the same carrier interferes at full power; neighbors on other
// carriers do not interfere.
func DownlinkSINR(pos model.Position, serving Site, neighbors []Site, noiseDBm float64, pl PathLossFunc) float64 {
	rsrpServing := DownlinkStrength(serving.Cell, serving.Position, pos, pl)
	if math.IsInf(rsrpServing, -1) {
		return math.Inf(-1)
	}

	interference := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		if n.Cell.CellID == serving.Cell.CellID || n.Cell.CarrierFrequencyMHz != serving.Cell.CarrierFrequencyMHz {
			continue
		}
		nRsrp := DownlinkStrength(n.Cell, n.Position, pos, pl)
		if math.IsInf(nRsrp, -1) {
			continue
		}
		interference = append(interference, nRsrp)
	}
	return SINR(rsrpServing, noiseDBm, interference...)
}
