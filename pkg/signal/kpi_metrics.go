package signal

// CQItoSINR mapping
// 0 and 16 values included only for calculations, not valid CQI indexes
var CQItoSINRmap = map[int]float64{
	0:  -8.950,
	1:  -6.9360,
	2:  -5.1470,
	3:  -3.1800,
	4:  -1.2530,
	5:  0.7610,
	6:  2.6990,
	7:  4.6940,
	8:  6.5250,
	9:  8.5730,
	10: 10.3660,
	11: 12.2890,
	12: 14.1730,
	13: 15.8880,
	14: 17.8140,
	15: 19.8290,
	16: 21.843,
}

// MaxCQI is the highest valid CQI index
const MaxCQI = 15

// CQIFromSINR returns the highest CQI whose SINR threshold is met.
// 0 means the channel is out of range.
func CQIFromSINR(sinr float64) int {
	cqi := 0
	for i := 1; i <= MaxCQI; i++ {
		if sinr < CQItoSINRmap[i] {
			break
		}
		cqi = i
	}
	return cqi
}

// SINRForCQI returns the lower SINR bound of cqi
func SINRForCQI(cqi int) float64 {
	if cqi < 0 {
		cqi = 0
	}
	if cqi > MaxCQI+1 {
		cqi = MaxCQI + 1
	}
	return CQItoSINRmap[cqi]
}
