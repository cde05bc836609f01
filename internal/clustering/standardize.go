package clustering

import "gonum.org/v1/gonum/stat"

// Standardize rescales values to zero mean and unit variance using the
// population standard deviation of the values themselves. A zero-variance
// input is only centred.
func Standardize(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	mean, std := stat.PopMeanStdDev(values, nil)
	for i, v := range values {
		out[i] = v - mean
		if std > 0 {
			out[i] /= std
		}
	}
	return out
}
