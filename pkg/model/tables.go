package model

import (
	"github.com/onosproject/onos-lib-go/pkg/errors"
)

// CQIEntry is one row of the CQI table
type CQIEntry struct {
	ModulationOrder    int     `mapstructure:"modulationOrder" yaml:"modulationOrder" json:"modulation_order"`
	CodeRate           float64 `mapstructure:"codeRate" yaml:"codeRate" json:"code_rate"`
	SpectralEfficiency float64 `mapstructure:"spectralEfficiency" yaml:"spectralEfficiency" json:"spectral_efficiency"`
}

// MCSEntry is one row of the MCS table. TargetCodeRate is expressed x1024.
type MCSEntry struct {
	Index              int     `mapstructure:"index" yaml:"index" json:"index"`
	ModulationOrder    int     `mapstructure:"modulationOrder" yaml:"modulationOrder" json:"modulation_order"`
	TargetCodeRate     float64 `mapstructure:"targetCodeRate" yaml:"targetCodeRate" json:"target_code_rate"`
	SpectralEfficiency float64 `mapstructure:"spectralEfficiency" yaml:"spectralEfficiency" json:"spectral_efficiency"`
}

// Tables holds the CQI and MCS lookup tables
type Tables struct {
	// CQI is keyed by CQI index; index 0 means out of range and is never present
	CQI map[int]CQIEntry `mapstructure:"cqi" yaml:"cqi"`
	// MCS is ordered by non-decreasing spectral efficiency
	MCS []MCSEntry `mapstructure:"mcs" yaml:"mcs"`
}

// Validate rejects empty or unordered tables
func (t *Tables) Validate() error {
	if len(t.CQI) == 0 {
		return errors.NewInvalid("CQI table is empty")
	}
	if len(t.MCS) == 0 {
		return errors.NewInvalid("MCS table is empty")
	}
	if _, ok := t.CQI[0]; ok {
		return errors.NewInvalid("CQI 0 is reserved for out of range")
	}
	for i := 1; i < len(t.MCS); i++ {
		if t.MCS[i].SpectralEfficiency < t.MCS[i-1].SpectralEfficiency {
			return errors.NewInvalid("MCS table not ordered by spectral efficiency at index %d", t.MCS[i].Index)
		}
	}
	return nil
}

// DefaultTables returns 3GPP TS 38.214 Table 5.2.2.1-2 (CQI) and Table 5.1.3.1-1 (MCS).
func DefaultTables() Tables {
	return Tables{
		CQI: map[int]CQIEntry{
			1:  {ModulationOrder: 2, CodeRate: 78, SpectralEfficiency: 0.1523},
			2:  {ModulationOrder: 2, CodeRate: 120, SpectralEfficiency: 0.2344},
			3:  {ModulationOrder: 2, CodeRate: 193, SpectralEfficiency: 0.3770},
			4:  {ModulationOrder: 2, CodeRate: 308, SpectralEfficiency: 0.6016},
			5:  {ModulationOrder: 2, CodeRate: 449, SpectralEfficiency: 0.8770},
			6:  {ModulationOrder: 2, CodeRate: 602, SpectralEfficiency: 1.1758},
			7:  {ModulationOrder: 4, CodeRate: 378, SpectralEfficiency: 1.4766},
			8:  {ModulationOrder: 4, CodeRate: 490, SpectralEfficiency: 1.9141},
			9:  {ModulationOrder: 4, CodeRate: 616, SpectralEfficiency: 2.4063},
			10: {ModulationOrder: 6, CodeRate: 466, SpectralEfficiency: 2.7305},
			11: {ModulationOrder: 6, CodeRate: 567, SpectralEfficiency: 3.3223},
			12: {ModulationOrder: 6, CodeRate: 666, SpectralEfficiency: 3.9023},
			13: {ModulationOrder: 6, CodeRate: 772, SpectralEfficiency: 4.5234},
			14: {ModulationOrder: 6, CodeRate: 873, SpectralEfficiency: 5.1152},
			15: {ModulationOrder: 6, CodeRate: 948, SpectralEfficiency: 5.5547},
		},
		MCS: []MCSEntry{
			{Index: 0, ModulationOrder: 2, TargetCodeRate: 120, SpectralEfficiency: 0.2344},
			{Index: 1, ModulationOrder: 2, TargetCodeRate: 157, SpectralEfficiency: 0.3066},
			{Index: 2, ModulationOrder: 2, TargetCodeRate: 193, SpectralEfficiency: 0.3770},
			{Index: 3, ModulationOrder: 2, TargetCodeRate: 251, SpectralEfficiency: 0.4902},
			{Index: 4, ModulationOrder: 2, TargetCodeRate: 308, SpectralEfficiency: 0.6016},
			{Index: 5, ModulationOrder: 2, TargetCodeRate: 379, SpectralEfficiency: 0.7402},
			{Index: 6, ModulationOrder: 2, TargetCodeRate: 449, SpectralEfficiency: 0.8770},
			{Index: 7, ModulationOrder: 2, TargetCodeRate: 526, SpectralEfficiency: 1.0273},
			{Index: 8, ModulationOrder: 2, TargetCodeRate: 602, SpectralEfficiency: 1.1758},
			{Index: 9, ModulationOrder: 2, TargetCodeRate: 679, SpectralEfficiency: 1.3262},
			{Index: 10, ModulationOrder: 4, TargetCodeRate: 340, SpectralEfficiency: 1.3281},
			{Index: 11, ModulationOrder: 4, TargetCodeRate: 378, SpectralEfficiency: 1.4766},
			{Index: 12, ModulationOrder: 4, TargetCodeRate: 434, SpectralEfficiency: 1.6953},
			{Index: 13, ModulationOrder: 4, TargetCodeRate: 490, SpectralEfficiency: 1.9141},
			{Index: 14, ModulationOrder: 4, TargetCodeRate: 553, SpectralEfficiency: 2.1602},
			{Index: 15, ModulationOrder: 4, TargetCodeRate: 616, SpectralEfficiency: 2.4063},
			// MCS 16 (4, 658, 2.5703) is left out, it is more efficient than MCS 17
			{Index: 17, ModulationOrder: 6, TargetCodeRate: 438, SpectralEfficiency: 2.5664},
			{Index: 18, ModulationOrder: 6, TargetCodeRate: 466, SpectralEfficiency: 2.7305},
			{Index: 19, ModulationOrder: 6, TargetCodeRate: 517, SpectralEfficiency: 3.0293},
			{Index: 20, ModulationOrder: 6, TargetCodeRate: 567, SpectralEfficiency: 3.3223},
			{Index: 21, ModulationOrder: 6, TargetCodeRate: 616, SpectralEfficiency: 3.6094},
			{Index: 22, ModulationOrder: 6, TargetCodeRate: 666, SpectralEfficiency: 3.9023},
			{Index: 23, ModulationOrder: 6, TargetCodeRate: 719, SpectralEfficiency: 4.2129},
			{Index: 24, ModulationOrder: 6, TargetCodeRate: 772, SpectralEfficiency: 4.5234},
			{Index: 25, ModulationOrder: 6, TargetCodeRate: 822, SpectralEfficiency: 4.8164},
			{Index: 26, ModulationOrder: 6, TargetCodeRate: 873, SpectralEfficiency: 5.1152},
			{Index: 27, ModulationOrder: 6, TargetCodeRate: 910, SpectralEfficiency: 5.3320},
			{Index: 28, ModulationOrder: 6, TargetCodeRate: 948, SpectralEfficiency: 5.5547},
		},
	}
}
