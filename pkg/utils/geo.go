// SPDX-FileCopyrightText: 2020-present Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package utils

import (
	"math"

	"github.com/nfvri/ran-scheduler/pkg/model"
)

// Distance returns the euclidean distance between two positions in meters
func Distance(p1 model.Position, p2 model.Position) float64 {
	return math.Hypot(p2.X-p1.X, p2.Y-p1.Y)
}

// Reflect folds v back into [0, limit] as if bouncing off both ends.
// The returned sign tells whether the direction of travel flipped.
func Reflect(v, limit float64) (float64, float64) {
	if limit <= 0 {
		return 0, 1
	}
	sign := 1.0
	period := 2 * limit
	v = math.Mod(v, period)
	if v < 0 {
		v += period
	}
	if v > limit {
		v = period - v
		sign = -sign
	}
	return v, sign
}
