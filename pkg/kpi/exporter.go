package kpi

import (
	"net/http"
	"strconv"

	"github.com/nfvri/ran-scheduler/pkg/bandwidth"
	"github.com/nfvri/ran-scheduler/pkg/cell"
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/nfvri/ran-scheduler/pkg/statistics"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ransched"

// Exporter publishes per cell and per UE scheduling KPIs as Prometheus metrics
type Exporter struct {
	gatherer prometheus.Gatherer

	AvailableDLPRB *prometheus.GaugeVec
	UsedDLPRB      *prometheus.GaugeVec
	UsedULPRB      *prometheus.GaugeVec
	DLLoad         *prometheus.GaugeVec
	ActiveUEs      *prometheus.GaugeVec
	SliceBudget    *prometheus.GaugeVec
	SliceUsedPRB   *prometheus.GaugeVec
	PRBPerUE       *prometheus.GaugeVec
	MeanBitrate    *prometheus.GaugeVec
	Fairness       *prometheus.GaugeVec
	DroppedPRB     *prometheus.CounterVec

	UEBitrate    *prometheus.GaugeVec
	UEGrantedPRB *prometheus.GaugeVec
	UEMCS        *prometheus.GaugeVec

	Ticks prometheus.Counter
}

// NewExporter registers the KPI metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewExporter(reg prometheus.Registerer) (*Exporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	cellGauge := func(name, help string, labels ...string) (*prometheus.GaugeVec, error) {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, append([]string{"cell"}, labels...))
		return registerGaugeVec(reg, vec, name)
	}

	e := &Exporter{gatherer: gatherer}
	var err error
	if e.AvailableDLPRB, err = cellGauge("prb_avail_dl", bandwidth.AVAIL_PRBS_DL_METRIC+": downlink PRBs of the cell."); err != nil {
		return nil, err
	}
	if e.UsedDLPRB, err = cellGauge("prb_used_dl", bandwidth.USED_PRBS_DL_METRIC+": downlink PRBs granted in the last tick."); err != nil {
		return nil, err
	}
	if e.UsedULPRB, err = cellGauge("prb_used_ul", bandwidth.USED_PRBS_UL_METRIC+": uplink PRBs granted in the last tick."); err != nil {
		return nil, err
	}
	if e.DLLoad, err = cellGauge("load_dl_ratio", "Share of downlink PRBs in use."); err != nil {
		return nil, err
	}
	if e.ActiveUEs, err = cellGauge("active_ues_dl", bandwidth.ACTIVE_UES_DL_METRIC+": connected UEs."); err != nil {
		return nil, err
	}
	if e.SliceBudget, err = cellGauge("slice_budget_prb", "Downlink PRBs reserved for a slice.", "slice"); err != nil {
		return nil, err
	}
	if e.SliceUsedPRB, err = cellGauge("slice_prb_used_dl", "Downlink PRBs granted to the UEs of a slice.", "slice"); err != nil {
		return nil, err
	}
	if e.PRBPerUE, err = cellGauge("prb_per_ue_dl", "Granted downlink PRBs per connected UE."); err != nil {
		return nil, err
	}
	if e.MeanBitrate, err = cellGauge("thp_dl_mean_bps", "Mean downlink bitrate of the connected UEs."); err != nil {
		return nil, err
	}
	if e.Fairness, err = cellGauge("fairness_jain", "Jain fairness index of the downlink bitrates."); err != nil {
		return nil, err
	}
	if e.UEBitrate, err = cellGauge("ue_thp_dl_bps", bandwidth.UE_THP_DL_METRIC+": downlink bitrate of a UE.", "imsi"); err != nil {
		return nil, err
	}
	if e.UEGrantedPRB, err = cellGauge("ue_prb_dl", "Downlink PRBs granted to a UE.", "imsi"); err != nil {
		return nil, err
	}
	if e.UEMCS, err = cellGauge("ue_mcs_dl", "Downlink MCS index of a UE, -1 when unset.", "imsi"); err != nil {
		return nil, err
	}

	e.DroppedPRB, err = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prb_dropped_total",
		Help:      "Leftover downlink PRBs that no UE could absorb.",
	}, []string{"cell"}), "prb_dropped_total")
	if err != nil {
		return nil, err
	}
	e.Ticks, err = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Completed scheduling ticks.",
	}), "ticks_total")
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Observe refreshes the metrics of the given cells. UE series of UEs that
// left a cell are removed.
func (e *Exporter) Observe(cells ...*cell.Cell) {
	if e == nil {
		return
	}
	for _, c := range cells {
		snap := c.Snapshot()
		id := snap.CellID
		e.AvailableDLPRB.WithLabelValues(id).Set(float64(snap.MaxDLPRB))
		e.UsedDLPRB.WithLabelValues(id).Set(float64(snap.AllocatedDLPRB))
		e.UsedULPRB.WithLabelValues(id).Set(float64(snap.AllocatedULPRB))
		e.DLLoad.WithLabelValues(id).Set(snap.CurrentDLLoad)
		e.ActiveUEs.WithLabelValues(id).Set(float64(len(snap.ConnectedUEs)))
		e.DroppedPRB.WithLabelValues(id).Add(float64(snap.DroppedPRB))

		e.SliceBudget.DeletePartialMatch(prometheus.Labels{"cell": id})
		for slice, budget := range snap.SliceBudgets {
			e.SliceBudget.WithLabelValues(id, string(slice)).Set(float64(budget))
		}

		e.UEBitrate.DeletePartialMatch(prometheus.Labels{"cell": id})
		e.UEGrantedPRB.DeletePartialMatch(prometheus.Labels{"cell": id})
		e.UEMCS.DeletePartialMatch(prometheus.Labels{"cell": id})
		ues := c.ConnectedUEs()
		granted := make(map[types.IMSI]int, len(ues))
		sliceOf := make(map[types.IMSI]model.SliceType, len(ues))
		bitrates := make([]float64, 0, len(ues))
		for _, ue := range ues {
			prbs := snap.PRBUEAllocation[ue.IMSI].Downlink
			granted[ue.IMSI] = prbs
			sliceOf[ue.IMSI] = ue.Slice
			bitrates = append(bitrates, ue.DownlinkBitrate)

			imsi := strconv.FormatUint(uint64(ue.IMSI), 10)
			e.UEBitrate.WithLabelValues(id, imsi).Set(ue.DownlinkBitrate)
			e.UEGrantedPRB.WithLabelValues(id, imsi).Set(float64(prbs))
			e.UEMCS.WithLabelValues(id, imsi).Set(float64(ue.DownlinkMCSIndex))
		}

		e.SliceUsedPRB.DeletePartialMatch(prometheus.Labels{"cell": id})
		for slice, used := range statistics.PrbUsedPerSlice(granted, sliceOf) {
			e.SliceUsedPRB.WithLabelValues(id, string(slice)).Set(float64(used))
		}
		e.PRBPerUE.WithLabelValues(id).Set(statistics.UEThp(snap.AllocatedDLPRB, len(ues)))
		e.MeanBitrate.WithLabelValues(id).Set(statistics.MeanThroughput(bitrates))
		e.Fairness.WithLabelValues(id).Set(statistics.JainFairness(bitrates))
	}
}

// Tick counts one completed scheduling tick
func (e *Exporter) Tick() {
	if e == nil {
		return
	}
	e.Ticks.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (e *Exporter) Handler() http.Handler {
	gatherer := e.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, errors.NewConflict("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, errors.NewConflict("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, errors.NewConflict("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
