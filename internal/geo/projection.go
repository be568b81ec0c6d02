package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
	"github.com/twpayne/go-proj/v10"
)

var ErrUnsupportedCRS = errors.New("unsupported coordinate reference system")

// EPSG codes of spherical web-mercator and its legacy aliases.
var mercatorCodes = map[int]struct{}{
	3857:   {},
	3785:   {},
	900913: {},
	102100: {},
	102113: {},
}

// ParseEPSG extracts the numeric code from "EPSG:3857", "urn:ogc:def:crs:EPSG::3857" or "3857".
func ParseEPSG(name string) (int, error) {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndex(name, ":"); idx >= 0 {
		name = name[idx+1:]
	}

	code, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("can't parse epsg code %q: %w", name, err)
	}

	return code, nil
}

// NewProjection returns a transformer from crsName to WGS84 (EPSG:4326), axis order (x, y).
// WGS84 and web-mercator are handled by orb, every other EPSG code by PROJ.
// Points PROJ can't transform come back as NaN, see validPoint.
func NewProjection(crsName string) (orb.Projection, error) {
	code, err := ParseEPSG(crsName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedCRS, err)
	}

	if code == 4326 {
		return func(p orb.Point) orb.Point { return p }, nil
	}

	if _, ok := mercatorCodes[code]; ok {
		return project.Mercator.ToWGS84, nil
	}

	pj, err := transformers.get(code)
	if err != nil {
		return nil, fmt.Errorf("%w: EPSG:%d: %w", ErrUnsupportedCRS, code, err)
	}

	return func(p orb.Point) orb.Point {
		c, err := pj.Forward(proj.NewCoord(p[0], p[1], 0, 0))
		if err != nil {
			return orb.Point{nan, nan}
		}
		return orb.Point{c.X(), c.Y()}
	}, nil
}

// transformerCache keeps one PROJ transformer per source EPSG code for the process lifetime.
type transformerCache struct {
	mu  sync.Mutex
	pjs map[int]*proj.PJ
}

var transformers = &transformerCache{pjs: map[int]*proj.PJ{}}

func (c *transformerCache) get(code int) (*proj.PJ, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pj, ok := c.pjs[code]; ok {
		return pj, nil
	}

	pj, err := proj.NewCRSToCRS("EPSG:"+strconv.Itoa(code), "EPSG:4326", nil)
	if err != nil {
		return nil, fmt.Errorf("can't create transformer: %w", err)
	}
	defer pj.Destroy()

	// lon, lat output regardless of the axis order the CRS definitions declare
	normalized, err := pj.NormalizeForVisualization()
	if err != nil {
		return nil, fmt.Errorf("can't normalize transformer: %w", err)
	}

	c.pjs[code] = normalized
	return normalized, nil
}
