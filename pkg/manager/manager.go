// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/nfvri/ran-scheduler/pkg/cell"
	"github.com/nfvri/ran-scheduler/pkg/handover"
	"github.com/nfvri/ran-scheduler/pkg/kpi"
	"github.com/nfvri/ran-scheduler/pkg/mcs"
	"github.com/nfvri/ran-scheduler/pkg/mobility"
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/signal"
	"github.com/nfvri/ran-scheduler/pkg/statistics"
	redisLib "github.com/nfvri/ran-scheduler/pkg/store/redis"
	"github.com/nfvri/ran-scheduler/pkg/utils"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Config is a manager configuration
type Config struct {
	// HOType enables handover, empty disables it
	HOType       handover.HOType
	HysteresisDB float64
	// CQIFromSINR refreshes the downlink CQI of every UE from its serving cell
	// SINR before each tick. Otherwise the configured CQI is kept.
	CQIFromSINR bool
	// Interference counts co-channel neighbor cells in the SINR
	Interference        bool
	ResetRatesOnMCSLoss bool
	SlicingEnabled      bool
}

// NewManager creates a new manager
func NewManager(config *Config) (*Manager, error) {
	if config == nil {
		return nil, errors.NewInvalid("manager configuration is required")
	}
	log.Info("Creating Manager")
	return &Manager{
		config:     *config,
		snapshotID: uuid.New().String(),
		collector:  kpi.NewCollector(config.SlicingEnabled),
		history:    kpi.NewLoadHistory(),
		activeUEs:  make(map[string][]int),
	}, nil
}

// Manager drives the cells of a scenario tick by tick
type Manager struct {
	config     Config
	model      *model.Model
	snapshotID string

	stations map[string]*model.BaseStation
	cells    map[string]*cell.Cell
	cellIDs  []string
	ues      []*model.UE
	pathLoss signal.PathLossFunc
	noiseDBm map[string]float64

	hoCtrl         handover.HOController
	mobilityDriver mobility.Driver
	started        bool

	collector *kpi.Collector
	history   *kpi.LoadHistory
	activeUEs map[string][]int
	csv       *kpi.CSVWriter
	exporter  *kpi.Exporter
	store     redisLib.Store
	onTick    func(tick uint64)

	tick uint64
}

// SetKPIWriter makes every tick append its KPI records to w
func (m *Manager) SetKPIWriter(w *kpi.CSVWriter) {
	m.csv = w
}

// SetExporter makes every tick refresh the Prometheus metrics
func (m *Manager) SetExporter(e *kpi.Exporter) {
	m.exporter = e
}

// SetStore makes every tick persist the cell snapshots
func (m *Manager) SetStore(s redisLib.Store) {
	m.store = s
}

// SetTickHook registers a callback run after every completed tick
func (m *Manager) SetTickHook(hook func(tick uint64)) {
	m.onTick = hook
}

// SnapshotID identifies the snapshots of this run in the store
func (m *Manager) SnapshotID() string {
	return m.snapshotID
}

// Tick is the number of completed ticks
func (m *Manager) Tick() uint64 {
	return m.tick
}

// History returns the per cell load history of the run
func (m *Manager) History() *kpi.LoadHistory {
	return m.history
}

// Cell gets a cell by id
func (m *Manager) Cell(id string) (*cell.Cell, error) {
	if c, ok := m.cells[id]; ok {
		return c, nil
	}
	return nil, errors.NewNotFound("cell %s not found", id)
}

// CellIDs returns the cell ids in ascending order
func (m *Manager) CellIDs() []string {
	return append([]string(nil), m.cellIDs...)
}

// UEs returns the UEs ordered by IMSI
func (m *Manager) UEs() []*model.UE {
	return append([]*model.UE(nil), m.ues...)
}

// UE gets a UE by IMSI
func (m *Manager) UE(imsi types.IMSI) (*model.UE, error) {
	for _, ue := range m.ues {
		if ue.IMSI == imsi {
			return ue, nil
		}
	}
	return nil, errors.NewNotFound("ue %d not found", imsi)
}

// Load builds the base stations, cells and UEs of a validated model and
// attaches every UE to its best cell. Any cell that cannot be built fails
// the whole load.
func (m *Manager) Load(mdl *model.Model) error {
	if mdl == nil {
		return errors.NewInvalid("model is required")
	}
	pl, err := signal.GetPathLossModel(mdl.PathLossModel)
	if err != nil {
		return err
	}

	m.model = mdl
	m.pathLoss = pl
	m.stations = make(map[string]*model.BaseStation, len(mdl.BaseStations))
	for id, bs := range mdl.BaseStations {
		bs := bs
		m.stations[id] = &bs
	}

	m.cells = make(map[string]*cell.Cell, len(mdl.Cells))
	m.noiseDBm = make(map[string]float64, len(mdl.Cells))
	m.cellIDs = utils.SortedKeys(mdl.Cells)
	infos := make(map[string]handover.CellInfo, len(mdl.Cells))
	for _, id := range m.cellIDs {
		cfg := mdl.Cells[id]
		bs, ok := m.stations[cfg.BaseStationID]
		if !ok {
			return errors.NewInvalid("cell %s refers to unknown base station %q", id, cfg.BaseStationID)
		}
		c, err := cell.NewCell(bs, cfg,
			cell.WithPathLossModel(mdl.PathLossModel),
			cell.WithTables(mdl.Tables),
			cell.WithSliceWeights(mdl.SliceWeights),
			cell.WithPRBPerUECap(mdl.PRBPerUECap),
			cell.WithResetRatesOnMCSLoss(m.config.ResetRatesOnMCSLoss),
		)
		if err != nil {
			return err
		}
		m.cells[id] = c
		m.noiseDBm[id] = signal.ThermalNoiseDBm(cfg.BandwidthHz, mdl.NoiseFigureDB)
		infos[id] = handover.CellInfoFromConfig(cfg)
	}

	m.ues = make([]*model.UE, 0, len(mdl.UEs))
	for _, key := range utils.SortedKeys(mdl.UEs) {
		m.ues = append(m.ues, model.NewUE(mdl.UEs[key], mcs.Unset))
	}
	slices.SortFunc(m.ues, func(a, b *model.UE) int {
		switch {
		case a.IMSI < b.IMSI:
			return -1
		case a.IMSI > b.IMSI:
			return 1
		}
		return 0
	})
	for _, ue := range m.ues {
		if err := m.attach(ue); err != nil {
			return err
		}
	}

	m.hoCtrl = handover.NewHOController(m.config.HOType, infos, m.config.HysteresisDB)
	m.mobilityDriver = mobility.NewMobilityDriver(mdl.Layout, m.cells, m.hoCtrl)
	m.started = false
	m.tick = 0
	m.activeUEs = make(map[string][]int, len(m.cells))
	log.Infof("Loaded %d base stations, %d cells, %d UEs, handover %s", len(m.stations), len(m.cells), len(m.ues),
		utils.If(m.config.HOType == "", "disabled", string(m.config.HOType)))
	return nil
}

// Start starts the handover controller; it stops with ctx
func (m *Manager) Start(ctx context.Context) error {
	if m.model == nil {
		return errors.NewInvalid("no model loaded")
	}
	if m.started {
		return nil
	}
	if m.config.HOType != "" {
		if err := m.hoCtrl.Start(ctx); err != nil {
			return err
		}
	}
	m.started = true
	log.Infof("Manager started, snapshot id %s", m.snapshotID)
	return nil
}

// rsrp is the downlink power of cell c at pos
func (m *Manager) rsrp(c *cell.Cell, pos model.Position) float64 {
	cfg := c.Config()
	return signal.DownlinkStrength(&cfg, c.Position(), pos, m.pathLoss)
}

func (m *Manager) site(c *cell.Cell) signal.Site {
	cfg := c.Config()
	return signal.Site{Cell: &cfg, Position: c.Position()}
}

func (m *Manager) neighborSites(serving *cell.Cell) []signal.Site {
	sites := make([]signal.Site, 0, len(m.cellIDs))
	for _, id := range m.cellIDs {
		if id != serving.ID() {
			sites = append(sites, m.site(m.cells[id]))
		}
	}
	return sites
}

// bestCell returns the cell with the highest RSRP at the UE location among
// those above their QrxLevelMin. Ties go to the lowest cell id.
func (m *Manager) bestCell(ue *model.UE) (*cell.Cell, bool) {
	var best *cell.Cell
	bestRSRP := math.Inf(-1)
	for _, id := range m.cellIDs {
		c := m.cells[id]
		rsrp := m.rsrp(c, ue.Location)
		if rsrp < c.Config().QrxLevelMin {
			continue
		}
		if best == nil || rsrp > bestRSRP {
			best, bestRSRP = c, rsrp
		}
	}
	return best, best != nil
}

func (m *Manager) attach(ue *model.UE) error {
	c, ok := m.bestCell(ue)
	if !ok {
		log.Warnf("UE %d at %v is out of coverage", ue.IMSI, ue.Location)
		return nil
	}
	log.Debugf("UE %d attached to cell %s", ue.IMSI, c.ID())
	return c.RegisterUE(ue)
}

// Step advances the whole scenario by dt seconds: UEs move, their CQI is
// refreshed, every cell schedules in parallel, KPIs are collected and
// finally handovers are executed one at a time.
func (m *Manager) Step(ctx context.Context, dt float64) error {
	if !m.started {
		return errors.NewInvalid("manager not started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if dt < 0 {
		return errors.NewInvalid("negative time step %v", dt)
	}

	for _, ue := range m.ues {
		m.mobilityDriver.Move(ue, dt)
	}
	if m.config.CQIFromSINR {
		m.refreshCQI()
	}
	if err := m.stepCells(dt); err != nil {
		return err
	}
	if err := m.report(ctx); err != nil {
		return err
	}
	if err := m.handover(ctx); err != nil {
		return err
	}

	m.tick++
	if m.onTick != nil {
		m.onTick(m.tick)
	}
	return nil
}

func (m *Manager) refreshCQI() {
	for _, ue := range m.ues {
		c, ok := m.cells[ue.ServingCell]
		if !ok {
			continue
		}
		noise := m.noiseDBm[c.ID()]
		if math.IsInf(noise, -1) {
			// no bandwidth configured, keep the scenario CQI
			continue
		}
		var sinr float64
		if m.config.Interference {
			sinr = signal.DownlinkSINR(ue.Location, m.site(c), m.neighborSites(c), noise, m.pathLoss)
		} else {
			sinr = signal.SINR(m.rsrp(c, ue.Location), noise)
		}
		ue.DownlinkCQI = signal.CQIFromSINR(sinr)
		log.Debugf("UE %d: SINR %.2fdB CQI %d", ue.IMSI, sinr, ue.DownlinkCQI)
	}
}

// stepCells runs one goroutine per cell. A UE is connected to one cell at
// most so no UE is touched by two goroutines.
func (m *Manager) stepCells(dt float64) error {
	errs := make([]error, len(m.cellIDs))
	var wg sync.WaitGroup
	for i, id := range m.cellIDs {
		wg.Add(1)
		go func(i int, c *cell.Cell) {
			defer wg.Done()
			errs[i] = c.Step(dt)
		}(i, m.cells[id])
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) report(ctx context.Context) error {
	cells := make([]*cell.Cell, 0, len(m.cellIDs))
	for _, id := range m.cellIDs {
		c := m.cells[id]
		cells = append(cells, c)
		m.history.Add(c.Tick(), id, c.CurrentDLLoad())
		m.activeUEs[id] = append(m.activeUEs[id], c.NumUEs())

		if m.csv != nil {
			if err := m.csv.Write(m.collector.Collect(c)); err != nil {
				return fmt.Errorf("cell %s: writing KPI records: %w", id, err)
			}
		}
		if m.store != nil {
			if err := m.store.AddCellSnapshot(ctx, m.snapshotID, c.Snapshot()); err != nil {
				log.Warnf("Cell %s: unable to store snapshot: %v", id, err)
			}
		}
	}
	m.exporter.Observe(cells...)
	m.exporter.Tick()
	return nil
}

// handover evaluates every attached UE against its neighbors and executes
// the resulting decisions serially. Detached UEs retry attachment.
func (m *Manager) handover(ctx context.Context) error {
	if m.config.HOType == "" {
		return nil
	}
	for _, ue := range m.ues {
		serving, ok := m.cells[ue.ServingCell]
		if !ok {
			if err := m.attach(ue); err != nil {
				return err
			}
			continue
		}
		report := handover.MeasurementReport{
			UE:          ue,
			ServingCell: serving.ID(),
			ServingRSRP: m.rsrp(serving, ue.Location),
			Neighbors:   make(map[string]float64, len(m.cellIDs)-1),
		}
		for _, id := range m.cellIDs {
			if id != serving.ID() {
				report.Neighbors[id] = m.rsrp(m.cells[id], ue.Location)
			}
		}
		decision, err := m.hoCtrl.Evaluate(ctx, report)
		if err != nil {
			return err
		}
		if !decision.Feasible {
			continue
		}
		if err := m.mobilityDriver.Handover(ctx, decision); err != nil {
			return err
		}
		log.Infof("UE %d handed over from %s to %s", ue.IMSI, decision.ServingCell, decision.TargetCell)
	}
	return nil
}

// MeanActiveUEs is the mean number of UEs connected to a cell over the
// completed ticks
func (m *Manager) MeanActiveUEs(cellID string) float64 {
	return statistics.MeanActiveUeDl(m.activeUEs[cellID])
}

// Handovers is the number of handovers executed so far
func (m *Manager) Handovers() int {
	if m.mobilityDriver == nil {
		return 0
	}
	return m.mobilityDriver.Handovers()
}

// Run starts the manager and steps it ticks times, stopping early when ctx
// is cancelled
func (m *Manager) Run(ctx context.Context, ticks int, dt float64) error {
	log.Infof("Running Manager for %d ticks of %vs", ticks, dt)
	if err := m.Start(ctx); err != nil {
		return err
	}
	for i := 0; i < ticks; i++ {
		if err := m.Step(ctx, dt); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the KPI output
func (m *Manager) Close() error {
	log.Info("Closing Manager")
	for _, id := range m.cellIDs {
		log.Infof("Cell %s: %.2f mean active UEs", id, m.MeanActiveUEs(id))
	}
	if m.csv != nil {
		return m.csv.Close()
	}
	return nil
}
