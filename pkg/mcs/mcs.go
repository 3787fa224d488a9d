package mcs

import (
	"github.com/nfvri/ran-scheduler/pkg/model"
	log "github.com/sirupsen/logrus"
)

// Unset marks a UE without a usable downlink MCS
const Unset = -1

// Selector maps a reported CQI onto the most efficient MCS the channel can decode
type Selector struct {
	cqi map[int]model.CQIEntry
	mcs []model.MCSEntry
}

// NewSelector builds a selector over validated tables
func NewSelector(tables model.Tables) (*Selector, error) {
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	s := &Selector{
		cqi: make(map[int]model.CQIEntry, len(tables.CQI)),
		mcs: make([]model.MCSEntry, len(tables.MCS)),
	}
	for k, v := range tables.CQI {
		s.cqi[k] = v
	}
	copy(s.mcs, tables.MCS)
	return s, nil
}

// Select returns the MCS for cqi. The entry is a copy owned by the caller.
func (s *Selector) Select(cqi int) (int, *model.MCSEntry, bool) {
	if cqi == 0 {
		return Unset, nil, false
	}
	entry, ok := s.cqi[cqi]
	if !ok {
		return Unset, nil, false
	}

	best := -1
	for i, m := range s.mcs {
		if m.SpectralEfficiency > entry.SpectralEfficiency {
			break
		}
		best = i
	}
	if best < 0 {
		return Unset, nil, false
	}
	selected := s.mcs[best]
	return selected.Index, &selected, true
}

// Apply resets the downlink MCS of ue and writes the new selection
func (s *Selector) Apply(ue *model.UE) bool {
	ue.DownlinkMCSIndex = Unset
	ue.DownlinkMCS = nil

	index, entry, ok := s.Select(ue.DownlinkCQI)
	if !ok {
		log.Debugf("UE %d: no usable MCS for CQI %d", ue.IMSI, ue.DownlinkCQI)
		return false
	}
	ue.DownlinkMCSIndex = index
	ue.DownlinkMCS = entry
	return true
}
