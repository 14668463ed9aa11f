// Package quantize - Colour clustering used to posterize an image down to a small
// palette.
package quantize

import (
	"math"
	"math/rand"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoPoints is returned when there is nothing to cluster.
	ErrNoPoints = errors.New("no points to cluster")
	// ErrInvalidK is returned for a cluster count below 1.
	ErrInvalidK = errors.New("cluster count must be at least 1")
)

// Point is a position in 3-D colour space (B, G, R).
type Point [3]float64

// Criteria controls when a single k-means attempt stops.
type Criteria struct {
	// MaxIterations bounds the number of assignment/update rounds.
	MaxIterations int
	// Epsilon stops the attempt once no centre moves further than this.
	Epsilon float64
}

// DefaultCriteria is 20 iterations or a largest centre shift of 1.0.
var DefaultCriteria = Criteria{MaxIterations: 20, Epsilon: 1.0}

// DefaultAttempts is the number of independent restarts.
const DefaultAttempts = 10

// Options configures KMeans.
type Options struct {
	// K is the number of clusters.
	K int
	// Attempts is the number of restarts; the most compact result wins.
	Attempts int
	// Criteria is the per-attempt termination rule.
	Criteria Criteria
	// Rand supplies randomness for centre initialisation. Nil uses a time seed.
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Criteria.MaxIterations <= 0 {
		o.Criteria.MaxIterations = DefaultCriteria.MaxIterations
	}
	if o.Criteria.Epsilon < 0 {
		o.Criteria.Epsilon = 0
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// Result holds the outcome of the best attempt.
type Result struct {
	// Centers holds K cluster centres.
	Centers []Point
	// Labels holds the centre index of every input point.
	Labels []int
	// Compactness is the weighted sum of squared distances to the assigned centres.
	Compactness float64
	// Iterations is the number of rounds the winning attempt ran.
	Iterations int
}

// KMeans partitions weighted points into K clusters.
//
// Centres start uniformly random inside the bounding box of the data. Each round
// assigns every point to its nearest centre and moves the centres to the weighted
// mean of their members; a centre left without members takes the point of the most
// populated cluster that lies furthest from that cluster's centre. An attempt stops
// after Criteria.MaxIterations rounds or once the largest centre shift is at most
// Criteria.Epsilon. The attempt with the lowest compactness is returned.
//
// When there are no more points than clusters, the points themselves are the
// centres and no randomness is used.
//
// Arguments:
//   - points: The samples to cluster.
//   - weights: Optional per-point weights (pixel counts). Nil weighs every point 1.
//   - opts: Cluster count, attempts and termination criteria.
//
// Returns:
//   - Result: Centres, labels and compactness of the best attempt.
//   - error: ErrNoPoints, ErrInvalidK or a weight mismatch.
func KMeans(points []Point, weights []float64, opts Options) (Result, error) {
	if len(points) == 0 {
		return Result{}, ErrNoPoints
	}
	if opts.K < 1 {
		return Result{}, errors.Wrapf(ErrInvalidK, "k=%d", opts.K)
	}
	if weights != nil && len(weights) != len(points) {
		return Result{}, errors.Errorf("got %d weights for %d points", len(weights), len(points))
	}
	if weights == nil {
		weights = make([]float64, len(points))
		for i := range weights {
			weights[i] = 1
		}
	}

	if len(points) <= opts.K {
		return trivial(points, opts.K), nil
	}

	opts = opts.withDefaults()

	var best Result
	best.Compactness = math.Inf(1)
	for a := 0; a < opts.Attempts; a++ {
		res := attempt(points, weights, opts)
		if res.Compactness < best.Compactness {
			best = res
		}
	}
	return best, nil
}

// trivial uses every point as its own centre, padding with copies of the last point.
func trivial(points []Point, k int) Result {
	centers := make([]Point, k)
	labels := make([]int, len(points))
	for i := range centers {
		if i < len(points) {
			centers[i] = points[i]
		} else {
			centers[i] = points[len(points)-1]
		}
	}
	for i := range labels {
		labels[i] = i
	}
	return Result{Centers: centers, Labels: labels}
}

func attempt(points []Point, weights []float64, opts Options) Result {
	k := opts.K
	lo, hi := bounds(points)

	centers := make([]Point, k)
	for c := range centers {
		for j := 0; j < 3; j++ {
			centers[c][j] = lo[j] + opts.Rand.Float64()*(hi[j]-lo[j])
		}
	}

	labels := make([]int, len(points))
	sums := make([]Point, k)
	mass := make([]float64, k)
	counts := make([]int, k)
	epsSq := opts.Criteria.Epsilon * opts.Criteria.Epsilon

	iter := 0
	for iter < opts.Criteria.MaxIterations {
		iter++
		assign(points, centers, labels)

		for c := range sums {
			sums[c] = Point{}
			mass[c] = 0
			counts[c] = 0
		}
		for i, p := range points {
			c := labels[i]
			w := weights[i]
			sums[c][0] += p[0] * w
			sums[c][1] += p[1] * w
			sums[c][2] += p[2] * w
			mass[c] += w
			counts[c]++
		}

		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				reseed(c, points, weights, labels, centers, sums, mass, counts)
			}
		}

		maxShift := 0.0
		for c := 0; c < k; c++ {
			if mass[c] == 0 {
				continue
			}
			next := Point{sums[c][0] / mass[c], sums[c][1] / mass[c], sums[c][2] / mass[c]}
			if d := distSq(next, centers[c]); d > maxShift {
				maxShift = d
			}
			centers[c] = next
		}
		if maxShift <= epsSq {
			break
		}
	}

	assign(points, centers, labels)
	compactness := 0.0
	for i, p := range points {
		compactness += weights[i] * distSq(p, centers[labels[i]])
	}

	return Result{Centers: centers, Labels: labels, Compactness: compactness, Iterations: iter}
}

// reseed moves the point of the most populated cluster that lies furthest from its
// centre into the empty cluster c.
func reseed(c int, points []Point, weights []float64, labels []int, centers, sums []Point, mass []float64, counts []int) {
	largest := 0
	for j := range counts {
		if counts[j] > counts[largest] {
			largest = j
		}
	}
	if counts[largest] < 2 {
		return
	}

	far, farDist := -1, -1.0
	for i, p := range points {
		if labels[i] != largest {
			continue
		}
		if d := distSq(p, centers[largest]); d > farDist {
			far, farDist = i, d
		}
	}

	p, w := points[far], weights[far]
	sums[largest][0] -= p[0] * w
	sums[largest][1] -= p[1] * w
	sums[largest][2] -= p[2] * w
	mass[largest] -= w
	counts[largest]--

	sums[c] = Point{p[0] * w, p[1] * w, p[2] * w}
	mass[c] = w
	counts[c] = 1
	labels[far] = c
}

func assign(points []Point, centers []Point, labels []int) {
	for i, p := range points {
		best, bestDist := 0, math.Inf(1)
		for c, ctr := range centers {
			if d := distSq(p, ctr); d < bestDist {
				best, bestDist = c, d
			}
		}
		labels[i] = best
	}
}

func bounds(points []Point) (lo, hi Point) {
	lo, hi = points[0], points[0]
	for _, p := range points[1:] {
		for j := 0; j < 3; j++ {
			lo[j] = math.Min(lo[j], p[j])
			hi[j] = math.Max(hi[j], p[j])
		}
	}
	return lo, hi
}

func distSq(a, b Point) float64 {
	d0, d1, d2 := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return d0*d0 + d1*d1 + d2*d2
}
