package statistics

import (
	"testing"

	"github.com/nfvri/ran-scheduler/pkg/model"
	"github.com/onosproject/onos-api/go/onos/ransim/types"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	assert.Equal(t, 0.5, Load(50, 100))
	assert.Equal(t, 0.0, Load(50, 0))
}

func TestMeanActiveUeDl(t *testing.T) {
	assert.Equal(t, 2.0, MeanActiveUeDl([]int{1, 2, 3}))
	assert.Equal(t, 0.0, MeanActiveUeDl(nil))
}

func TestUEThp(t *testing.T) {
	assert.Equal(t, 25.0, UEThp(100, 4))
	assert.Equal(t, 0.0, UEThp(100, 0))
}

func TestPrbUsedPerSlice(t *testing.T) {
	used := PrbUsedPerSlice(
		map[types.IMSI]int{1: 10, 2: 5, 3: 7, 4: 1},
		map[types.IMSI]model.SliceType{1: model.SliceEMBB, 2: model.SliceURLLC, 3: model.SliceURLLC},
	)
	assert.Equal(t, map[model.SliceType]int{model.SliceEMBB: 11, model.SliceURLLC: 12}, used)
}

func TestMeanThroughput(t *testing.T) {
	assert.Equal(t, 0.0, MeanThroughput(nil))
	assert.InDelta(t, 2e6, MeanThroughput([]float64{1e6, 3e6}), 1e-6)
}

func TestJainFairness(t *testing.T) {
	assert.Equal(t, 1.0, JainFairness(nil))
	assert.Equal(t, 1.0, JainFairness([]float64{0, 0}))
	assert.InDelta(t, 1.0, JainFairness([]float64{5, 5, 5}), 1e-12)
	assert.InDelta(t, 0.25, JainFairness([]float64{8, 0, 0, 0}), 1e-12)
}
