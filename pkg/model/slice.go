package model

import (
	"math"
	"sort"
	"strings"

	"github.com/onosproject/onos-lib-go/pkg/errors"
)

// SliceType is one of the traffic classes sharing the DL PRB budget of a cell
type SliceType string

const (
	SliceEMBB  SliceType = "eMBB"
	SliceURLLC SliceType = "URLLC"
	SliceMMTC  SliceType = "mMTC"
)

// ParseSliceType maps a slice name onto the canonical spelling of the known
// slices regardless of case. Unknown names are kept as given, the empty name
// is eMBB.
func ParseSliceType(name string) SliceType {
	switch strings.ToLower(name) {
	case "", "embb":
		return SliceEMBB
	case "urllc":
		return SliceURLLC
	case "mmtc":
		return SliceMMTC
	}
	return SliceType(name)
}

// DefaultSliceWeights returns a fresh copy of the default slice shares
func DefaultSliceWeights() map[SliceType]float64 {
	return map[SliceType]float64{
		SliceEMBB:  0.6,
		SliceURLLC: 0.3,
		SliceMMTC:  0.1,
	}
}

// CopySliceWeights returns a copy of weights, nil stays nil
func CopySliceWeights(weights map[SliceType]float64) map[SliceType]float64 {
	if weights == nil {
		return nil
	}
	c := make(map[SliceType]float64, len(weights))
	for s, w := range weights {
		c[s] = w
	}
	return c
}

// SortedSlices returns the slice names of weights in ascending order
func SortedSlices(weights map[SliceType]float64) []SliceType {
	slices := make([]SliceType, 0, len(weights))
	for s := range weights {
		slices = append(slices, s)
	}
	sort.Slice(slices, func(i, j int) bool { return slices[i] < slices[j] })
	return slices
}

// CheckSliceWeights rejects NaN and infinite slice weights
func CheckSliceWeights(weights map[SliceType]float64) error {
	for _, s := range SortedSlices(weights) {
		if w := weights[s]; math.IsNaN(w) || math.IsInf(w, 0) {
			return errors.NewInvalid("slice %s has non-finite weight %v", s, w)
		}
	}
	return nil
}
