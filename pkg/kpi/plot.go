package kpi

import (
	"sync"

	"github.com/nfvri/ran-scheduler/pkg/utils"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// LoadHistory keeps the downlink load of every cell, one point per tick
type LoadHistory struct {
	mu     sync.Mutex
	series map[string]plotter.XYs
}

// NewLoadHistory creates an empty history
func NewLoadHistory() *LoadHistory {
	return &LoadHistory{series: map[string]plotter.XYs{}}
}

// Add records the load of a cell at a tick
func (h *LoadHistory) Add(tick uint64, cellID string, load float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.series[cellID] = append(h.series[cellID], plotter.XY{X: float64(tick), Y: load})
}

// Len is the number of points recorded for a cell
func (h *LoadHistory) Len(cellID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.series[cellID])
}

// Save plots one line per cell and writes the image to path. The format
// follows the file extension.
func (h *LoadHistory) Save(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.series) == 0 {
		return errors.NewInvalid("no load samples to plot")
	}

	p := plot.New()
	p.Title.Text = "Downlink PRB load per cell"
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Load"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())

	for i, id := range utils.SortedKeys(h.series) {
		line, err := plotter.NewLine(h.series[id])
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Dashes = plotutil.Dashes(i)
		p.Add(line)
		p.Legend.Add(id, line)
	}

	if err := p.Save(15*vg.Inch, 10*vg.Inch, path); err != nil {
		return err
	}
	log.Infof("Load plot saved to %s", path)
	return nil
}
