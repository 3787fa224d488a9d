// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/onosproject/onos-lib-go/pkg/errors"
)

const (
	// DefaultSchedulerPolicy is the QoS-aware proportional fair scheduler
	DefaultSchedulerPolicy = "QoS-aware PFS"

	// DefaultPathLossModel is the path loss model used when the scenario does not name one
	DefaultPathLossModel = "urban_macro_nlos"

	// DefaultNoiseFigureDB is the UE receiver noise figure
	DefaultNoiseFigureDB = 7.0
)

// Model simulation model
type Model struct {
	Layout        Layout                 `mapstructure:"layout" yaml:"layout"`
	BaseStations  map[string]BaseStation `mapstructure:"baseStations" yaml:"baseStations"`
	Cells         map[string]CellConfig  `mapstructure:"cells" yaml:"cells"`
	UEs           map[string]UEConfig    `mapstructure:"ues" yaml:"ues"`
	SliceWeights  map[SliceType]float64  `mapstructure:"sliceWeights" yaml:"sliceWeights"`
	PRBPerUECap   *int                   `mapstructure:"prbPerUeCap" yaml:"prbPerUeCap"`
	PathLossModel string                 `mapstructure:"pathLossModel" yaml:"pathLossModel"`
	NoiseFigureDB float64                `mapstructure:"noiseFigureDB" yaml:"noiseFigureDB"`
	Tables        Tables                 `mapstructure:"tables" yaml:"tables"`
}

// Layout is the rectangular simulation area in meters, anchored at the origin
type Layout struct {
	Width  float64 `mapstructure:"width" yaml:"width"`
	Height float64 `mapstructure:"height" yaml:"height"`
}

// Position is a cartesian location in meters
type Position struct {
	X float64 `mapstructure:"x" yaml:"x" json:"x"`
	Y float64 `mapstructure:"y" yaml:"y" json:"y"`
}

// Velocity in meters per second
type Velocity struct {
	VX float64 `mapstructure:"vx" yaml:"vx" json:"vx"`
	VY float64 `mapstructure:"vy" yaml:"vy" json:"vy"`
}

// BaseStation hosts one or more cells at a single site
type BaseStation struct {
	ID       string   `mapstructure:"id" yaml:"id" json:"id"`
	Location Position `mapstructure:"position" yaml:"position" json:"position"`
}

// Position returns the site location
func (bs *BaseStation) Position() Position {
	return bs.Location
}

// CellConfig is the immutable identity and radio configuration of a cell
type CellConfig struct {
	CellID                  string     `mapstructure:"cellId" yaml:"cellId" json:"cell_id"`
	NCGI                    types.NCGI `mapstructure:"ncgi" yaml:"ncgi" json:"ncgi"`
	BaseStationID           string     `mapstructure:"baseStation" yaml:"baseStation" json:"base_station"`
	FrequencyBand           string     `mapstructure:"frequencyBand" yaml:"frequencyBand" json:"frequency_band"`
	CarrierFrequencyMHz     float64    `mapstructure:"carrierFrequencyMHz" yaml:"carrierFrequencyMHz" json:"carrier_frequency_MHz"`
	BandwidthHz             float64    `mapstructure:"bandwidthHz" yaml:"bandwidthHz" json:"bandwidth_Hz"`
	MaxPRB                  int        `mapstructure:"maxPrb" yaml:"maxPrb" json:"max_prb"`
	MaxDLPRB                int        `mapstructure:"maxDlPrb" yaml:"maxDlPrb" json:"max_dl_prb"`
	MaxULPRB                int        `mapstructure:"maxUlPrb" yaml:"maxUlPrb" json:"max_ul_prb"`
	CellRadius              float64    `mapstructure:"cellRadius" yaml:"cellRadius" json:"cell_radius"`
	TransmitPowerDBm        float64    `mapstructure:"transmitPowerDBm" yaml:"transmitPowerDBm" json:"transmit_power_dBm"`
	CellIndividualOffsetDBm float64    `mapstructure:"cellIndividualOffsetDBm" yaml:"cellIndividualOffsetDBm" json:"cell_individual_offset_dBm"`
	FrequencyPriority       int        `mapstructure:"frequencyPriority" yaml:"frequencyPriority" json:"frequency_priority"`
	QrxLevelMin             float64    `mapstructure:"qrxLevelMin" yaml:"qrxLevelMin" json:"qrx_level_min"`
	SchedulerPolicy         string     `mapstructure:"schedulerPolicy" yaml:"schedulerPolicy" json:"scheduler_policy"`
}

// CarrierFrequencyGHz returns the carrier frequency in GHz as expected by path loss models
func (c *CellConfig) CarrierFrequencyGHz() float64 {
	return c.CarrierFrequencyMHz / 1000
}

// Validate checks the mandatory cell configuration
func (c *CellConfig) Validate() error {
	switch {
	case c.CellID == "":
		return errors.NewInvalid("cell id is required")
	case c.CarrierFrequencyMHz <= 0:
		return errors.NewInvalid("cell %s: carrier frequency must be positive", c.CellID)
	case c.MaxDLPRB <= 0:
		return errors.NewInvalid("cell %s: max DL PRB must be positive", c.CellID)
	case c.MaxULPRB < 0:
		return errors.NewInvalid("cell %s: max UL PRB must not be negative", c.CellID)
	case c.MaxPRB < c.MaxDLPRB:
		return errors.NewInvalid("cell %s: max PRB %d smaller than max DL PRB %d", c.CellID, c.MaxPRB, c.MaxDLPRB)
	}
	return nil
}

// QoSProfile carries the guaranteed bit rates in bits per second
type QoSProfile struct {
	GBRDL float64 `mapstructure:"gbrDl" yaml:"gbrDl" json:"GBR_DL"`
	GBRUL float64 `mapstructure:"gbrUl" yaml:"gbrUl" json:"GBR_UL"`
}

// UEConfig is the scenario description of a UE
type UEConfig struct {
	IMSI                   types.IMSI `mapstructure:"imsi" yaml:"imsi"`
	Position               Position   `mapstructure:"position" yaml:"position"`
	Velocity               Velocity   `mapstructure:"velocity" yaml:"velocity"`
	UplinkTransmitPowerDBm float64    `mapstructure:"uplinkTransmitPowerDBm" yaml:"uplinkTransmitPowerDBm"`
	DownlinkCQI            int        `mapstructure:"downlinkCqi" yaml:"downlinkCqi"`
	Slice                  SliceType  `mapstructure:"slice" yaml:"slice"`
	QoS                    QoSProfile `mapstructure:"qos" yaml:"qos"`
	DLBufferBytes          *float64   `mapstructure:"dlBufferBytes" yaml:"dlBufferBytes"`
}

// UE represents user-equipment, i.e. phone, IoT device, etc.
type UE struct {
	IMSI                   types.IMSI
	Location               Position
	Velocity               Velocity
	UplinkTransmitPowerDBm float64
	DownlinkCQI            int
	Slice                  SliceType
	QoS                    QoSProfile
	// DLBufferBytes is nil when the UE does not model a downlink buffer
	DLBufferBytes *float64

	DownlinkMCSIndex int
	DownlinkMCS      *MCSEntry
	DownlinkBitrate  float64
	DownlinkLatency  float64

	ServingCell string
}

// NewUE creates a UE from its scenario description with no MCS selected
func NewUE(cfg UEConfig, unsetMCS int) *UE {
	ue := &UE{
		IMSI:                   cfg.IMSI,
		Location:               cfg.Position,
		Velocity:               cfg.Velocity,
		UplinkTransmitPowerDBm: cfg.UplinkTransmitPowerDBm,
		DownlinkCQI:            cfg.DownlinkCQI,
		Slice:                  cfg.Slice,
		QoS:                    cfg.QoS,
		DownlinkMCSIndex:       unsetMCS,
	}
	if ue.Slice == "" {
		ue.Slice = SliceEMBB
	}
	if cfg.DLBufferBytes != nil {
		buf := *cfg.DLBufferBytes
		ue.DLBufferBytes = &buf
	}
	return ue
}

// Position returns the UE location
func (ue *UE) Position() Position {
	return ue.Location
}

// GetCell gets a cell configuration by id
func (m *Model) GetCell(id string) (CellConfig, error) {
	if cell, ok := m.Cells[id]; ok {
		return cell, nil
	}
	return CellConfig{}, errors.New(errors.NotFound, "cell %s not found", id)
}

// GetBaseStation gets a base station by id
func (m *Model) GetBaseStation(id string) (BaseStation, error) {
	if bs, ok := m.BaseStations[id]; ok {
		return bs, nil
	}
	return BaseStation{}, errors.New(errors.NotFound, "base station %s not found", id)
}
