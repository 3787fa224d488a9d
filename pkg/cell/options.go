package cell

import (
	"github.com/nfvri/ran-scheduler/pkg/model"
)

type options struct {
	pathLossModel       string
	tables              *model.Tables
	sliceWeights        map[model.SliceType]float64
	prbPerUECap         *int
	resetRatesOnMCSLoss bool
}

// Option configures a Cell at construction
type Option func(*options)

// WithPathLossModel selects the uplink path loss model by key
func WithPathLossModel(name string) Option {
	return func(o *options) {
		o.pathLossModel = name
	}
}

// WithTables replaces the default CQI and MCS tables
func WithTables(tables model.Tables) Option {
	return func(o *options) {
		o.tables = &tables
	}
}

// WithSliceWeights sets the initial slice shares
func WithSliceWeights(weights map[model.SliceType]float64) Option {
	return func(o *options) {
		o.sliceWeights = model.CopySliceWeights(weights)
	}
}

// WithPRBPerUECap sets the initial per-UE downlink PRB cap, nil for none
func WithPRBPerUECap(limit *int) Option {
	return func(o *options) {
		o.prbPerUECap = copyCap(limit)
	}
}

// WithResetRatesOnMCSLoss zeroes bitrate and latency of UEs that lose their MCS
func WithResetRatesOnMCSLoss(reset bool) Option {
	return func(o *options) {
		o.resetRatesOnMCSLoss = reset
	}
}

func copyCap(limit *int) *int {
	if limit == nil {
		return nil
	}
	v := *limit
	return &v
}
