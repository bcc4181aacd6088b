package stability

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/harvard-visionlab/block-towers/internal/tower"
)

// Resolution selects how finely consecutive x offsets are binned.
type Resolution int

const (
	// Coarse bins each offset as left (-1), centered (0) or right (+1);
	// the middle quarter of the side length counts as centered.
	Coarse Resolution = iota
	// Fine uses five levels (-2..2): a centered quarter, then a quarter
	// per side, then the outer eighths.
	Fine
)

func (r Resolution) String() string {
	if r == Fine {
		return "fine"
	}
	return "coarse"
}

// ParseResolution accepts "coarse" or "fine".
func ParseResolution(s string) (Resolution, error) {
	switch strings.ToLower(s) {
	case "coarse", "":
		return Coarse, nil
	case "fine":
		return Fine, nil
	}
	return Coarse, fmt.Errorf("unknown shape resolution: %s", s)
}

// Labels returns the ordered bin labels of the resolution.
func (r Resolution) Labels() []string {
	if r == Fine {
		return []string{"-2", "-1", "0", "1", "2"}
	}
	return []string{"-1", "0", "1"}
}

func (r Resolution) edges(side float64) ([]float64, int) {
	if r == Fine {
		return []float64{-side, -side * 3 / 8, -side / 8, side / 8, side * 3 / 8, side}, 3
	}
	return []float64{-side, -side / 8, side / 8, side}, 2
}

// Digitize returns the number of edges less than or equal to x, i.e. the
// index of the half-open bin [edges[i-1], edges[i]) containing x. Edges must
// be increasing.
func Digitize(x float64, edges []float64) int {
	return sort.Search(len(edges), func(i int) bool { return edges[i] > x })
}

// ShapeCodes bins the x offset of every block relative to the block below.
// side is the side length the bin edges are scaled by.
func ShapeCodes(t tower.Tower, side float64, res Resolution) ([]int, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	edges, shift := res.edges(side)
	codes := make([]int, 0, len(t)-1)
	for i := 1; i < len(t); i++ {
		codes = append(codes, Digitize(t[i].X-t[i-1].X, edges)-shift)
	}
	return codes, nil
}

// ShapeCode is the silhouette of a tower as "_"-joined bin codes, e.g.
// "-1_0_1", using the bottom block's x side length as the scale.
func ShapeCode(t tower.Tower, res Resolution) (string, error) {
	if len(t) == 0 {
		return "", tower.ErrEmptyTower
	}
	codes, err := ShapeCodes(t, t[0].LX, res)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, "_"), nil
}

// AllShapes enumerates every shape code a tower of the given height can
// take: len(labels)^(height-1) codes, bottom offset varying slowest.
func AllShapes(height int, res Resolution) ([]string, error) {
	if height < 2 {
		return nil, fmt.Errorf("%w: shape space needs height >= 2, got %d", tower.ErrInvalidParam, height)
	}
	labels := res.Labels()
	shapes := []string{""}
	for pos := 0; pos < height-1; pos++ {
		next := make([]string, 0, len(shapes)*len(labels))
		for _, prefix := range shapes {
			for _, l := range labels {
				if prefix == "" {
					next = append(next, l)
				} else {
					next = append(next, prefix+"_"+l)
				}
			}
		}
		shapes = next
	}
	return shapes, nil
}
