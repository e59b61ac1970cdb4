// Package metrics implements the streaming statistics used to drive the
// rules engine: per (step, metric) running count, mean, variance, min,
// max, interquartile range, and median absolute deviation, each updated
// from a single numeric datum at a time with O(1) memory.
package metrics

import "math"

// counter is a monotonically increasing running total.
type counter struct {
	n float64
}

func (c *counter) add(by float64) { c.n += by }
func (c *counter) value() float64 { return c.n }

// meanVar implements Welford's online algorithm for the running mean and
// variance of a stream, avoiding the numerical instability of a naive
// sum-of-squares accumulator.
type meanVar struct {
	count float64
	mean  float64
	m2    float64
}

func (m *meanVar) add(x float64) {
	m.count++
	delta := x - m.mean
	m.mean += delta / m.count
	delta2 := x - m.mean
	m.m2 += delta * delta2
}

func (m *meanVar) Mean() float64 {
	if m.count == 0 {
		return 0
	}
	return m.mean
}

// Variance returns the sample variance (Bessel-corrected). Returns 0 for
// fewer than two observations.
func (m *meanVar) Variance() float64 {
	if m.count < 2 {
		return 0
	}
	return m.m2 / (m.count - 1)
}

// minMax tracks the running minimum and maximum of a stream.
type minMax struct {
	seen bool
	min  float64
	max  float64
}

func (mm *minMax) add(x float64) {
	if !mm.seen {
		mm.min, mm.max, mm.seen = x, x, true
		return
	}
	if x < mm.min {
		mm.min = x
	}
	if x > mm.max {
		mm.max = x
	}
}

// p2Quantile is the P² (piecewise-parabolic) quantile estimator of Jain
// and Chlamtac: it tracks a single quantile of a stream in constant
// memory, without retaining any of the observed values.
type p2Quantile struct {
	p          float64
	n          [5]int
	nDesired   [5]float64
	dn         [5]float64
	heights    [5]float64
	initial    []float64
	initialized bool
}

func newP2Quantile(p float64) *p2Quantile {
	return &p2Quantile{p: p, initial: make([]float64, 0, 5)}
}

func (q *p2Quantile) add(x float64) {
	if !q.initialized {
		q.initial = append(q.initial, x)
		if len(q.initial) < 5 {
			return
		}
		insertionSort(q.initial)
		for i := 0; i < 5; i++ {
			q.heights[i] = q.initial[i]
			q.n[i] = i + 1
		}
		q.nDesired[0] = 1
		q.nDesired[1] = 1 + 2*q.p
		q.nDesired[2] = 1 + 4*q.p
		q.nDesired[3] = 3 + 2*q.p
		q.nDesired[4] = 5
		q.dn[0] = 0
		q.dn[1] = q.p / 2
		q.dn[2] = q.p
		q.dn[3] = (1 + q.p) / 2
		q.dn[4] = 1
		q.initialized = true
		return
	}

	k := 0
	switch {
	case x < q.heights[0]:
		q.heights[0] = x
		k = 0
	case x >= q.heights[4]:
		q.heights[4] = x
		k = 3
	default:
		for i := 0; i < 4; i++ {
			if x < q.heights[i+1] {
				k = i
				break
			}
		}
	}
	for i := k + 1; i < 5; i++ {
		q.n[i]++
	}
	for i := 0; i < 5; i++ {
		q.nDesired[i] += q.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := q.nDesired[i] - float64(q.n[i])
		if (d >= 1 && q.n[i+1]-q.n[i] > 1) || (d <= -1 && q.n[i-1]-q.n[i] < -1) {
			sign := 1.0
			if d < 0 {
				sign = -1.0
			}
			newHeight := q.parabolic(i, sign)
			if q.heights[i-1] < newHeight && newHeight < q.heights[i+1] {
				q.heights[i] = newHeight
			} else {
				q.heights[i] = q.linear(i, sign)
			}
			q.n[i] += int(sign)
		}
	}
}

func (q *p2Quantile) parabolic(i int, d float64) float64 {
	return q.heights[i] + d/float64(q.n[i+1]-q.n[i-1])*(
		(float64(q.n[i]-q.n[i-1])+d)*(q.heights[i+1]-q.heights[i])/float64(q.n[i+1]-q.n[i])+
			(float64(q.n[i+1]-q.n[i])-d)*(q.heights[i]-q.heights[i-1])/float64(q.n[i]-q.n[i-1]))
}

func (q *p2Quantile) linear(i int, d float64) float64 {
	sign := int(d)
	return q.heights[i] + d*(q.heights[i+sign]-q.heights[i])/float64(q.n[i+sign]-q.n[i])
}

// Value returns the current quantile estimate.
func (q *p2Quantile) Value() float64 {
	if !q.initialized {
		if len(q.initial) == 0 {
			return 0
		}
		sorted := append([]float64(nil), q.initial...)
		insertionSort(sorted)
		idx := int(q.p * float64(len(sorted)-1))
		return sorted[idx]
	}
	return q.heights[2]
}

func insertionSort(xs []float64) {
	for i := 1; i < len(xs); i++ {
		v := xs[i]
		j := i - 1
		for j >= 0 && xs[j] > v {
			xs[j+1] = xs[j]
			j--
		}
		xs[j+1] = v
	}
}

// iqr tracks the interquartile range of a stream via two P² quantile
// estimators (the 25th and 75th percentiles).
type iqr struct {
	q1 *p2Quantile
	q3 *p2Quantile
}

func newIQR() *iqr {
	return &iqr{q1: newP2Quantile(0.25), q3: newP2Quantile(0.75)}
}

func (e *iqr) add(x float64) {
	e.q1.add(x)
	e.q3.add(x)
}

func (e *iqr) Value() float64 {
	return e.q3.Value() - e.q1.Value()
}

// mad tracks the median absolute deviation of a stream: a running median
// estimator feeding a second running median of the absolute deviations
// from the first. Both legs are approximated with P², matching the
// spirit of a single-pass streaming MAD.
type mad struct {
	median    *p2Quantile
	deviation *p2Quantile
}

func newMAD() *mad {
	return &mad{median: newP2Quantile(0.5), deviation: newP2Quantile(0.5)}
}

func (e *mad) add(x float64) {
	e.median.add(x)
	e.deviation.add(math.Abs(x - e.median.Value()))
}

func (e *mad) Value() float64 {
	return e.deviation.Value()
}
