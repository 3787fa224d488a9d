package statistics

import (
	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Load is the share of max PRBs in use
func Load(allocated, maxPRB int) float64 {
	if maxPRB <= 0 {
		return 0
	}
	return float64(allocated) / float64(maxPRB)
}

// DRB.MeanActiveUeDl calculates the mean number of active UEs in downlink.
func MeanActiveUeDl(activeUeCounts []int) float64 {
	if len(activeUeCounts) == 0 {
		return 0
	}
	sum := 0
	for _, count := range activeUeCounts {
		sum += count
	}
	return float64(sum) / float64(len(activeUeCounts))
}

// DRB.UEThp calculates the PRBs used per UE.
func UEThp(usedPRBs int, numUEs int) float64 {
	if numUEs == 0 {
		return 0
	}
	return float64(usedPRBs) / float64(numUEs)
}

// RRU.PrbUsedDl.QOS sums the downlink PRBs of every slice.
func PrbUsedPerSlice(allocation map[types.IMSI]int, sliceOf map[types.IMSI]model.SliceType) map[model.SliceType]int {
	used := map[model.SliceType]int{}
	for imsi, prbs := range allocation {
		slice, ok := sliceOf[imsi]
		if !ok {
			slice = model.SliceEMBB
		}
		used[slice] += prbs
	}
	return used
}

// MeanThroughput is the mean of the bitrates, 0 for none
func MeanThroughput(bitrates []float64) float64 {
	if len(bitrates) == 0 {
		return 0
	}
	return stat.Mean(bitrates, nil)
}

// JainFairness returns Jain's fairness index of the values, 1 when they are
// all equal. An empty or all-zero set counts as fair.
func JainFairness(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	sum := floats.Sum(values)
	sumSq := floats.Dot(values, values)
	if sumSq == 0 {
		return 1
	}
	return sum * sum / (float64(len(values)) * sumSq)
}
