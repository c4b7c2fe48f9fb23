// Package warehouse encodes the warehouse placement problem: find the
// latitude/longitude minimizing the distance to a set of customers,
// weighted by each customer's delivery cost.
package warehouse

import (
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/swarmopt/internal/optimization/candidate"
)

// Dimensions is the length of every warehouse representation: latitude
// then longitude.
const Dimensions = 2

// Customer is a delivery destination.
type Customer struct {
	// Location is [latitude, longitude] in degrees.
	Location [2]float64 `yaml:"location" json:"location"`
	// DeliveryCost weights the distance to this customer.
	DeliveryCost float64 `yaml:"delivery_cost" json:"delivery_cost"`
}

// File is the on-disk layout of a warehouse problem.
type File struct {
	Customers []Customer `yaml:"customers" json:"customers"`
}

// Problem implements candidate.Problem. It is immutable once built.
type Problem struct {
	locations [][]float64
	costs     []float64

	minLat, maxLat float64
	minLon, maxLon float64
}

var _ candidate.Problem = (*Problem)(nil)

// New builds a problem over customers.
func New(customers []Customer) (*Problem, error) {
	if len(customers) == 0 {
		return nil, fmt.Errorf("at least one customer is required")
	}

	p := &Problem{
		locations: make([][]float64, len(customers)),
		costs:     make([]float64, len(customers)),
		minLat:    math.Inf(1),
		maxLat:    math.Inf(-1),
		minLon:    math.Inf(1),
		maxLon:    math.Inf(-1),
	}
	for i, c := range customers {
		if err := checkCoordinates(c.Location[:]); err != nil {
			return nil, fmt.Errorf("customer %d: %w", i, err)
		}
		if math.IsNaN(c.DeliveryCost) || math.IsInf(c.DeliveryCost, 0) || c.DeliveryCost < 0 {
			return nil, fmt.Errorf("customer %d: delivery cost must be a non-negative number, got %v", i, c.DeliveryCost)
		}

		p.locations[i] = []float64{c.Location[0], c.Location[1]}
		p.costs[i] = c.DeliveryCost

		p.minLat = math.Min(p.minLat, c.Location[0])
		p.maxLat = math.Max(p.maxLat, c.Location[0])
		p.minLon = math.Min(p.minLon, c.Location[1])
		p.maxLon = math.Max(p.maxLon, c.Location[1])
	}
	return p, nil
}

// Load decodes a YAML problem description from r.
func Load(r io.Reader) (*Problem, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding warehouse problem: %w", err)
	}
	return New(f.Customers)
}

// LoadFile reads a YAML problem description from path.
func LoadFile(path string) (*Problem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Customers returns the number of customers.
func (p *Problem) Customers() int {
	return len(p.locations)
}

// Fitness returns the total delivery cost: the Euclidean distance from the
// warehouse to each customer, weighted by that customer's delivery cost.
func (p *Problem) Fitness(representation []float64) float64 {
	distances := make([]float64, len(p.locations))
	for i, loc := range p.locations {
		distances[i] = floats.Distance(loc, representation, 2)
	}
	return floats.Dot(p.costs, distances)
}

// RandomInitialRepresentation draws a location inside a random sub-box of
// the customers' bounding box. Each axis gets its own random interval since
// latitude and longitude spans differ.
func (p *Problem) RandomInitialRepresentation(rng candidate.Rand) []float64 {
	lat := subIntervalSample(rng, p.minLat, p.maxLat)
	lon := subIntervalSample(rng, p.minLon, p.maxLon)
	return []float64{lat, lon}
}

// Validate accepts a finite [latitude, longitude] pair within the valid
// coordinate ranges.
func (p *Problem) Validate(representation []float64) error {
	if len(representation) != Dimensions {
		return fmt.Errorf("representation must contain exactly %d values (latitude, longitude), got %d",
			Dimensions, len(representation))
	}
	return checkCoordinates(representation)
}

func checkCoordinates(loc []float64) error {
	for _, v := range loc {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("coordinates must be finite, got %v", loc)
		}
	}
	if loc[0] < -90 || loc[0] > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", loc[0])
	}
	if loc[1] < -180 || loc[1] > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", loc[1])
	}
	return nil
}

// subIntervalSample picks alpha <= beta uniformly in [lo, hi] and returns a
// uniform sample in [alpha, beta].
func subIntervalSample(rng candidate.Rand, lo, hi float64) float64 {
	alpha := uniform(rng, lo, hi)
	beta := uniform(rng, lo, hi)
	if alpha > beta {
		alpha, beta = beta, alpha
	}
	return uniform(rng, alpha, beta)
}

func uniform(rng candidate.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
