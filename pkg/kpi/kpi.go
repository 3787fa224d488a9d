package kpi

import (
	"github.com/nfvri/ran-scheduler/pkg/cell"
	"github.com/nfvri/ran-scheduler/pkg/utils"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	log "github.com/sirupsen/logrus"
)

// Record is the per tick KPI row of one connected UE
type Record struct {
	Tick                uint64     `csv:"Timestamp" json:"timestamp"`
	CellID              string     `csv:"cell_id" json:"cell_id"`
	NumUEs              int        `csv:"num_ues" json:"num_ues"`
	IMSI                types.IMSI `csv:"IMSI" json:"imsi"`
	RNTI                uint16     `csv:"RNTI" json:"rnti"`
	SlicingEnabled      bool       `csv:"slicing_enabled" json:"slicing_enabled"`
	SliceID             string     `csv:"slice_id" json:"slice_id"`
	SlicePRB            int        `csv:"slice_prb" json:"slice_prb"`
	SchedulingPolicy    string     `csv:"scheduling_policy" json:"scheduling_policy"`
	DLMCS               int        `csv:"dl_mcs" json:"dl_mcs"`
	DLBufferBytes       *float64   `csv:"dl_buffer_bytes,omitempty" json:"dl_buffer_bytes,omitempty"`
	TxBrateDownlinkMbps float64    `csv:"tx_brate_downlink_Mbps" json:"tx_brate_downlink_Mbps"`
	DLLatency           float64    `csv:"dl_latency_s" json:"dl_latency_s"`
	DLCQI               int        `csv:"dl_cqi" json:"dl_cqi"`
	ULRSSI              *float64   `csv:"ul_rssi,omitempty" json:"ul_rssi,omitempty"`
	SumRequestedPRBs    *int       `csv:"sum_requested_prbs,omitempty" json:"sum_requested_prbs,omitempty"`
	SumGrantedPRBs      int        `csv:"sum_granted_prbs" json:"sum_granted_prbs"`
}

// Collector turns cell state into KPI records. It must run between ticks.
type Collector struct {
	// SlicingEnabled is reported as is in every record
	SlicingEnabled bool
}

// NewCollector creates a collector
func NewCollector(slicingEnabled bool) *Collector {
	return &Collector{SlicingEnabled: slicingEnabled}
}

// Collect returns one record per UE connected to c, ordered by IMSI
func (k *Collector) Collect(c *cell.Cell) []Record {
	ues := c.ConnectedUEs()
	alloc, tick := c.Allocation()
	demand, _ := c.DLDemand()
	rssi, _ := c.UplinkSignalStrength()
	cfg := c.Config()

	records := make([]Record, 0, len(ues))
	for _, ue := range ues {
		r := Record{
			Tick:                tick,
			CellID:              cfg.CellID,
			NumUEs:              len(ues),
			IMSI:                ue.IMSI,
			RNTI:                utils.RNTI(ue.IMSI),
			SlicingEnabled:      k.SlicingEnabled,
			SliceID:             string(ue.Slice),
			SlicePRB:            alloc[ue.IMSI].Downlink,
			SchedulingPolicy:    cfg.SchedulerPolicy,
			DLMCS:               ue.DownlinkMCSIndex,
			TxBrateDownlinkMbps: ue.DownlinkBitrate / 1e6,
			DLLatency:           ue.DownlinkLatency,
			DLCQI:               ue.DownlinkCQI,
			SumGrantedPRBs:      alloc[ue.IMSI].Downlink,
		}
		if ue.DLBufferBytes != nil {
			buf := *ue.DLBufferBytes
			r.DLBufferBytes = &buf
		}
		if v, ok := rssi[ue.IMSI]; ok {
			v = utils.RoundToDecimal(v, 2)
			r.ULRSSI = &v
		}
		if v, ok := demand[ue.IMSI]; ok {
			r.SumRequestedPRBs = &v
		}
		records = append(records, r)
	}
	log.Debugf("Cell %s: collected %d KPI records for tick %d", cfg.CellID, len(records), tick)
	return records
}
