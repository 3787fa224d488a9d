package signal

import (
	"math"
	"sort"
	"sync"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Path loss model keys
const (
	UrbanMacroNLOS = "urban_macro_nlos"
	UrbanMacroLOS  = "urban_macro_los"
	RuralMacroLOS  = "rural_macro_los"
	RuralMacroNLOS = "rural_macro_nlos"
	FreeSpace      = "free_space"
)

const (
	speedOfLight = 3.0e8

	// heights in meters used by the 3GPP TR 38.901 macro models
	hBSUrban = 25.0
	hBSRural = 35.0
	hUT      = 1.5

	// minimum distance handed to the models, avoids log10(0)
	minDistanceM = 1.0
)

// PathLossFunc returns the path loss in dB at distanceM meters for a carrier of frequencyGHz
type PathLossFunc func(distanceM, frequencyGHz float64) float64

var (
	pathLossMu     sync.RWMutex
	pathLossModels = map[string]PathLossFunc{
		UrbanMacroNLOS: UrbanNLOSPathLoss,
		UrbanMacroLOS:  UrbanLOSPathLoss,
		RuralMacroLOS:  RuralLOSPathLoss,
		RuralMacroNLOS: RuralNLOSPathLoss,
		FreeSpace:      FreeSpacePathLoss,
	}
)

// GetPathLossModel returns the path loss model registered under name
func GetPathLossModel(name string) (PathLossFunc, error) {
	pathLossMu.RLock()
	defer pathLossMu.RUnlock()
	if pl, ok := pathLossModels[name]; ok {
		return pl, nil
	}
	return nil, errors.NewNotFound("path loss model %q not registered", name)
}

// RegisterPathLossModel adds or replaces the model registered under name
func RegisterPathLossModel(name string, pl PathLossFunc) {
	pathLossMu.Lock()
	defer pathLossMu.Unlock()
	if _, ok := pathLossModels[name]; ok {
		log.Infof("Replacing path loss model %s", name)
	}
	pathLossModels[name] = pl
}

// PathLossModels lists the registered model keys
func PathLossModels() []string {
	pathLossMu.RLock()
	defer pathLossMu.RUnlock()
	names := make([]string, 0, len(pathLossModels))
	for name := range pathLossModels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FreeSpacePathLoss is the Friis free space loss
func FreeSpacePathLoss(distanceM, frequencyGHz float64) float64 {
	d := math.Max(distanceM, minDistanceM)
	return 20*math.Log10(d) + 20*math.Log10(frequencyGHz) + 32.45
}

// 3D distance between a UE at ground height hUT and a mast of height hBS
func distance3D(d2D, hBS float64) float64 {
	return math.Sqrt(math.Pow(d2D, 2) + math.Pow(hBS-hUT, 2))
}

// Breakpoint distance function
func breakpointDistance(hBS, frequencyGHz float64) float64 {
	fc := frequencyGHz * 1e9
	return 2 * math.Pi * hBS * hUT * fc / speedOfLight
}

// Breakpoint distance with effective antenna heights, 1m environment height
func breakpointPrimeDistance(hBS, frequencyGHz float64) float64 {
	hE := 1.0
	fc := frequencyGHz * 1e9
	return 4 * (hBS - hE) * (hUT - hE) * fc / speedOfLight
}

// UrbanLOSPathLoss calculates the UMa LOS path loss
func UrbanLOSPathLoss(distanceM, frequencyGHz float64) float64 {
	d2D := math.Max(distanceM, minDistanceM)
	d3D := distance3D(d2D, hBSUrban)
	dBP := breakpointPrimeDistance(hBSUrban, frequencyGHz)

	if d2D <= dBP {
		return 28.0 + 22*math.Log10(d3D) + 20*math.Log10(frequencyGHz)
	}
	return 28.0 + 40*math.Log10(d3D) + 20*math.Log10(frequencyGHz) -
		9*math.Log10(math.Pow(dBP, 2)+math.Pow(hBSUrban-hUT, 2))
}

// UrbanNLOSPathLoss calculates the UMa NLOS path loss
func UrbanNLOSPathLoss(distanceM, frequencyGHz float64) float64 {
	d2D := math.Max(distanceM, minDistanceM)
	d3D := distance3D(d2D, hBSUrban)

	plLOS := UrbanLOSPathLoss(d2D, frequencyGHz)
	plNLOS := 13.54 + 39.08*math.Log10(d3D) + 20*math.Log10(frequencyGHz) - 0.6*(hUT-1.5)

	return math.Max(plLOS, plNLOS)
}

// rmaLOSPL1 calculates PL1 for RMa LOS path loss
func rmaLOSPL1(d, frequencyGHz float64) float64 {
	h := 5.0 // average building height in m

	return 20*math.Log10(40*math.Pi*d*frequencyGHz/3) + math.Min(0.03*math.Pow(h, 1.72), 10)*math.Log10(d) -
		math.Min(0.044*math.Pow(h, 1.72), 14.77) + 0.002*math.Log10(h)*d
}

// RuralLOSPathLoss calculates the RMa LOS path loss
func RuralLOSPathLoss(distanceM, frequencyGHz float64) float64 {
	d2D := math.Max(distanceM, minDistanceM)
	d3D := distance3D(d2D, hBSRural)
	dBP := breakpointDistance(hBSRural, frequencyGHz)

	if d2D <= dBP {
		return rmaLOSPL1(d3D, frequencyGHz)
	}
	return rmaLOSPL1(dBP, frequencyGHz) + 40*math.Log10(d3D/dBP)
}

// RuralNLOSPathLoss calculates the RMa NLOS path loss
func RuralNLOSPathLoss(distanceM, frequencyGHz float64) float64 {
	d3D := distance3D(math.Max(distanceM, minDistanceM), hBSRural)
	W := 20.0 // average street width 5m <= W <= 50m
	h := 5.0  // average building height 5m <= h <= 50m

	plLOS := RuralLOSPathLoss(distanceM, frequencyGHz)
	plNLOS := 161.04 - 7.1*math.Log10(W) + 7.5*math.Log10(h) -
		(24.37-3.7*math.Pow((h/hBSRural), 2))*math.Log10(hBSRural) +
		(43.42-3.1*math.Log10(hBSRural))*(math.Log10(d3D)-3) +
		20*math.Log10(frequencyGHz) -
		(math.Pow(3.2*math.Log10(11.75*hUT), 2) - 4.97)

	return math.Max(plLOS, plNLOS)
}
