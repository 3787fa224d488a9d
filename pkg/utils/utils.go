// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"hash/fnv"
	"math"
	"sort"

	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"golang.org/x/exp/constraints"
)

/**
 * Rounds number to decimals
 */
func RoundToDecimal(value float64, decimals int) float64 {
	intValue := value * math.Pow10(decimals)
	return math.Round(intValue) / math.Pow10(decimals)
}

// RNTI derives a stable 16 bit radio network temporary identifier from an IMSI
func RNTI(imsi types.IMSI) uint16 {
	h := fnv.New32a()
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(uint64(imsi) >> (8 * i))
	}
	_, _ = h.Write(b[:])
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum)
}

func If[T any](cond bool, vtrue, vfalse T) T {
	if cond {
		return vtrue
	}
	return vfalse
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
