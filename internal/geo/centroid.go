package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/twpayne/go-geos"
)

var ErrInvalidGeometry = errors.New("invalid geometry")

var nan = math.NaN()

// PointCentroid reprojects a single point.
func PointCentroid(point orb.Point, projection orb.Projection) (orb.Point, error) {
	p := project.Point(point, projection)
	if err := validPoint(p); err != nil {
		return orb.Point{}, err
	}
	return p, nil
}

func validPoint(p orb.Point) error {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates out of projection domain", ErrInvalidGeometry)
		}
	}
	return nil
}

// PolygonCentroid reprojects the outer ring of polygon and returns the centroid of the result.
func PolygonCentroid(polygon orb.Polygon, projection orb.Projection) (orb.Point, error) {
	if len(polygon) == 0 {
		return orb.Point{}, fmt.Errorf("%w: polygon without rings", ErrInvalidGeometry)
	}

	return ringCentroid(project.Ring(polygon[0].Clone(), projection))
}

// MultiPolygonCentroid joins every ring of every part into one ring and returns
// the centroid of that single polygon. This is not the centroid of the multi-part shape.
func MultiPolygonCentroid(multiPolygon orb.MultiPolygon, projection orb.Projection) (orb.Point, error) {
	ring := make(orb.Ring, 0)
	for _, polygon := range multiPolygon {
		for _, r := range polygon {
			ring = append(ring, r...)
		}
	}

	return ringCentroid(project.Ring(ring, projection))
}

func ringCentroid(ring orb.Ring) (centroid orb.Point, err error) {
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return orb.Point{}, fmt.Errorf("%w: ring has %d positions, need at least 4", ErrInvalidGeometry, len(ring))
	}

	// go-geos panics on GEOS errors
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidGeometry, r)
		}
	}()

	coords := make([][]float64, len(ring))
	for i, p := range ring {
		if err := validPoint(p); err != nil {
			return orb.Point{}, err
		}
		coords[i] = []float64{p[0], p[1]}
	}

	c := geos.NewPolygon([][][]float64{coords}).Centroid()
	if c.IsEmpty() {
		return orb.Point{}, fmt.Errorf("%w: empty centroid", ErrInvalidGeometry)
	}

	return orb.Point{c.X(), c.Y()}, nil
}
