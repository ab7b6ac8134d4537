package index

import "math"

// BM25Params are the Okapi BM25 free parameters.
type BM25Params struct {
	K1 float64
	B  float64
}

func DefaultBM25() BM25Params {
	return BM25Params{K1: 1.75, B: 0.75}
}

// AverageLength folds document lengths into a running value with
// avdl = (count*avdl + dl) / (count+1) in unsigned integer arithmetic,
// truncating at every step. The divisor is one more than the number of
// documents seen, so the result sits below the arithmetic mean. Rankings
// depend on this exact recurrence.
func AverageLength(lengths []int) float64 {
	var avdl uint64
	for count := uint64(1); count <= uint64(len(lengths)); count++ {
		avdl = (count*avdl + uint64(lengths[count-1])) / (count + 1)
	}
	return float64(avdl)
}

// TFNorm is the length-normalised term frequency
// tf*(k1+1) / (k1*(1-b+b*dl/avdl) + tf).
func (p BM25Params) TFNorm(tf, dl, avdl float64) float64 {
	if avdl == 0 {
		return 0
	}
	denominator := p.K1*(1-p.B+p.B*dl/avdl) + tf
	if denominator == 0 {
		return 0
	}
	return tf * (p.K1 + 1) / denominator
}

// IDF is log2(N/df).
func IDF(totalDocs, docFreq int) float64 {
	if docFreq == 0 {
		return 0
	}
	return math.Log2(float64(totalDocs) / float64(docFreq))
}
