package geo

import (
	"errors"
	"math"

	"github.com/mmcloughlin/geohash"

	"dispatch/internal/domain"
)

// cellPrecision is the geohash length used for proximity cells. At this
// precision a cell is roughly 1.2 km x 0.6 km, so one grid step is on the
// order of a kilometer.
const cellPrecision = 6

const earthRadiusKm = 6371.0

// ErrInvalidCoordinate is returned for latitudes outside [-90, 90] or
// longitudes outside [-180, 180].
var ErrInvalidCoordinate = errors.New("latitude or longitude out of range")

// Cell is a discretized geographic bucket at fixed resolution.
type Cell string

// CellOf buckets a coordinate into its proximity cell.
func CellOf(lat, lng float64) (Cell, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return "", ErrInvalidCoordinate
	}
	return Cell(geohash.EncodeWithPrecision(lat, lng, cellPrecision)), nil
}

// Disk returns every cell within ring grid steps of center, the center
// included. Ring 0 is the center cell alone.
func Disk(center Cell, ring int) map[Cell]struct{} {
	disk := map[Cell]struct{}{center: {}}
	frontier := []Cell{center}
	for step := 0; step < ring; step++ {
		var next []Cell
		for _, c := range frontier {
			for _, n := range geohash.Neighbors(string(c)) {
				cell := Cell(n)
				if _, seen := disk[cell]; seen {
					continue
				}
				disk[cell] = struct{}{}
				next = append(next, cell)
			}
		}
		frontier = next
	}
	return disk
}

// FindNearby filters candidates down to those whose cell falls within
// radiusMeters of the origin, using the bucketed disk. The result is not
// sorted by distance. A candidate located exactly at the origin is always
// included, for any radius >= 0.
func FindNearby(lat, lng, radiusMeters float64, candidates []domain.Worker) ([]domain.Worker, error) {
	origin, err := CellOf(lat, lng)
	if err != nil {
		return nil, err
	}

	ring := int(math.Ceil(radiusMeters / 1000))
	disk := Disk(origin, ring)

	var nearby []domain.Worker
	for _, w := range candidates {
		cell, err := CellOf(w.Lat, w.Lng)
		if err != nil {
			continue
		}
		if _, ok := disk[cell]; ok {
			nearby = append(nearby, w)
		}
	}
	return nearby, nil
}

// Nearest returns the candidate closest to the origin by great-circle
// distance. Unlike FindNearby it is exact, not bucketed; it serves
// single-nearest lookups only.
func Nearest(lat, lng float64, candidates []domain.Worker) (domain.Worker, bool) {
	var nearest domain.Worker
	minDist := math.Inf(1)
	for _, w := range candidates {
		d := HaversineKm(lat, lng, w.Lat, w.Lng)
		if d < minDist {
			nearest = w
			minDist = d
		}
	}
	return nearest, !math.IsInf(minDist, 1)
}

// HaversineKm computes the great-circle distance between two coordinates
// in kilometers.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
