// Package topology provides the optional stream-grouping capability used to
// partition concept history by feature-space proximity. The engine only sees
// opaque group ids; any implementation of Grouper can replace the shipped
// centroid grouper.
package topology

import (
	"fmt"
	"math"
	"sync"
)

// Grouper routes a batch of recent feature vectors to the nearest known
// region of the feature space.
type Grouper interface {
	// ClosestGroup returns the group id nearest to the given points, or
	// ok=false when no group is close enough.
	ClosestGroup(points [][]float64) (string, bool)

	// Prototypes returns the representative points of a group.
	Prototypes(groupID string) [][]float64
}

// CentroidGrouper maintains one running centroid per group and opens a new
// group whenever the nearest centroid is farther than Radius.
type CentroidGrouper struct {
	mu     sync.Mutex
	radius float64
	next   int
	groups map[string]*centroid
}

type centroid struct {
	sum   []float64
	count float64
}

func (c *centroid) mean() []float64 {
	out := make([]float64, len(c.sum))
	for i, v := range c.sum {
		out[i] = v / c.count
	}
	return out
}

// NewCentroidGrouper creates a grouper with the given opening radius.
func NewCentroidGrouper(radius float64) *CentroidGrouper {
	return &CentroidGrouper{radius: radius, groups: make(map[string]*centroid)}
}

// ClosestGroup averages the points, finds the nearest centroid, and folds the
// batch into it. A new group is opened when nothing lies within the radius.
func (g *CentroidGrouper) ClosestGroup(points [][]float64) (string, bool) {
	if len(points) == 0 {
		return "", false
	}
	probe := meanOf(points)

	g.mu.Lock()
	defer g.mu.Unlock()

	bestID := ""
	bestDist := math.Inf(1)
	for id, c := range g.groups {
		if d := distance(probe, c.mean()); d < bestDist {
			bestDist = d
			bestID = id
		}
	}

	if bestID == "" || bestDist > g.radius {
		g.next++
		bestID = fmt.Sprintf("g%d", g.next)
		g.groups[bestID] = &centroid{sum: make([]float64, len(probe))}
	}

	c := g.groups[bestID]
	for i, v := range probe {
		if i < len(c.sum) {
			c.sum[i] += v
		}
	}
	c.count++
	return bestID, true
}

// Prototypes returns the centroid of a group as its single prototype.
func (g *CentroidGrouper) Prototypes(groupID string) [][]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.groups[groupID]
	if !ok || c.count == 0 {
		return nil
	}
	return [][]float64{c.mean()}
}

func meanOf(points [][]float64) []float64 {
	out := make([]float64, len(points[0]))
	for _, p := range points {
		for i, v := range p {
			if i < len(out) {
				out[i] += v
			}
		}
	}
	for i := range out {
		out[i] /= float64(len(points))
	}
	return out
}

func distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
