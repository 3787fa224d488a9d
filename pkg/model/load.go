// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"bytes"
	"fmt"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const configDir = ".ran-scheduler"

// LoadConfig loads the named scenario from the current directory, ./config,
// $HOME/.ran-scheduler or /etc/ran-scheduler
func LoadConfig(m *Model, configname string) error {
	v := viper.New()
	v.SetConfigName(configname)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/" + configDir)
	v.AddConfigPath("/etc/ran-scheduler")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read scenario %s: %w", configname, err)
	}
	log.Infof("Loading scenario from %s", v.ConfigFileUsed())
	return decode(v, m)
}

// LoadConfigFile loads a scenario from an explicit file path
func LoadConfigFile(m *Model, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read scenario file %s: %w", path, err)
	}
	return decode(v, m)
}

// LoadConfigFromBytes loads a YAML scenario held in memory
func LoadConfigFromBytes(m *Model, data []byte) error {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBuffer(data)); err != nil {
		return fmt.Errorf("unable to parse scenario: %w", err)
	}
	return decode(v, m)
}

func decode(v *viper.Viper, m *Model) error {
	if err := v.Unmarshal(m); err != nil {
		return fmt.Errorf("unable to decode scenario: %w", err)
	}
	m.ApplyDefaults()
	return m.Validate()
}

// ApplyDefaults fills in everything the scenario left out. It runs once at
// load time so that no component needs a fallback of its own.
func (m *Model) ApplyDefaults() {
	if m.PathLossModel == "" {
		m.PathLossModel = DefaultPathLossModel
	}
	if m.NoiseFigureDB == 0 {
		m.NoiseFigureDB = DefaultNoiseFigureDB
	}
	if len(m.SliceWeights) == 0 {
		m.SliceWeights = DefaultSliceWeights()
	}
	if len(m.Tables.CQI) == 0 && len(m.Tables.MCS) == 0 {
		m.Tables = DefaultTables()
	}
	// viper lower-cases map keys, re-key everything by its declared id
	cells := make(map[string]CellConfig, len(m.Cells))
	for key, cell := range m.Cells {
		if cell.CellID == "" {
			cell.CellID = key
		}
		if cell.SchedulerPolicy == "" {
			cell.SchedulerPolicy = DefaultSchedulerPolicy
		}
		if cell.MaxPRB == 0 {
			cell.MaxPRB = cell.MaxDLPRB + cell.MaxULPRB
		}
		cells[cell.CellID] = cell
	}
	m.Cells = cells

	stations := make(map[string]BaseStation, len(m.BaseStations))
	for key, bs := range m.BaseStations {
		if bs.ID == "" {
			bs.ID = key
		}
		stations[bs.ID] = bs
	}
	m.BaseStations = stations

	weights := make(map[SliceType]float64, len(m.SliceWeights))
	for s, w := range m.SliceWeights {
		weights[ParseSliceType(string(s))] = w
	}
	m.SliceWeights = weights

	for id, ue := range m.UEs {
		ue.Slice = ParseSliceType(string(ue.Slice))
		m.UEs[id] = ue
	}
}

// Validate checks that the scenario can be simulated
func (m *Model) Validate() error {
	if err := m.Tables.Validate(); err != nil {
		return err
	}
	if m.PRBPerUECap != nil && *m.PRBPerUECap < 0 {
		return errors.NewInvalid("per-UE PRB cap must not be negative")
	}
	if err := CheckSliceWeights(m.SliceWeights); err != nil {
		return err
	}
	for s, w := range m.SliceWeights {
		if w < 0 {
			return errors.NewInvalid("slice %s has negative weight %v", s, w)
		}
	}
	for id, cell := range m.Cells {
		if err := cell.Validate(); err != nil {
			return err
		}
		if _, err := m.GetBaseStation(cell.BaseStationID); err != nil {
			return errors.NewInvalid("cell %s refers to unknown base station %q", id, cell.BaseStationID)
		}
	}
	seen := make(map[uint64]string, len(m.UEs))
	for id, ue := range m.UEs {
		if ue.IMSI == 0 {
			return errors.NewInvalid("ue %s has no IMSI", id)
		}
		if other, ok := seen[uint64(ue.IMSI)]; ok {
			return errors.NewInvalid("ue %s and %s share IMSI %d", id, other, ue.IMSI)
		}
		seen[uint64(ue.IMSI)] = id
	}
	return nil
}
