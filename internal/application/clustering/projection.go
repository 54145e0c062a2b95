package clustering

import (
	"math"

	"github.com/turtacn/TRAXX-Intelligence/pkg/types/common"
)

// maxMercatorLat is the latitude limit of the Web Mercator projection.
const maxMercatorLat = 85.05112878

// Point is a position in world pixel space at a given zoom.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Project converts a coordinate to world pixels at zoom for square tiles of
// tileSize pixels.  Latitude is clamped to the Mercator limit.
func Project(c common.Coordinate, zoom, tileSize float64) Point {
	lng := math.Max(-180, math.Min(180, c.Lng))
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, c.Lat))

	latRad := lat * math.Pi / 180
	x := (lng + 180) / 360
	y := 0.5 - math.Log(math.Tan(latRad*0.5+math.Pi/4))/math.Pi*0.5

	scale := math.Pow(2, zoom) * tileSize
	return Point{X: x * scale, Y: y * scale}
}

// Unproject is the inverse of Project.
func Unproject(p Point, zoom, tileSize float64) common.Coordinate {
	scale := math.Pow(2, zoom) * tileSize
	x := p.X / scale
	y := p.Y / scale

	lng := x*360 - 180
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y)))
	return common.Coordinate{Lat: latRad * 180 / math.Pi, Lng: lng}
}

// PixelDistance is the screen distance between two coordinates at zoom.
func PixelDistance(a, b common.Coordinate, zoom, tileSize float64) float64 {
	pa := Project(a, zoom, tileSize)
	pb := Project(b, zoom, tileSize)
	return math.Hypot(pa.X-pb.X, pa.Y-pb.Y)
}

//Personal.AI order the ending
