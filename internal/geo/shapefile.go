package geo

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"
)

// LoadShapefile reads population range polygons from a shapefile. The
// popField attribute supplies each range's population name; frame is the
// coordinate frame code the shapefile has already been reprojected into.
func LoadShapefile(path, popField, frame string) (*RangeSet, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	popIdx := fieldIndex(reader, popField)
	if popIdx < 0 {
		return nil, eris.Errorf("geo: shapefile field %q not found", popField)
	}

	log := zap.L().With(zap.String("component", "geo.shapefile"))

	var ranges []Range
	var skipped int
	for reader.Next() {
		_, shape := reader.Shape()

		pop := strings.TrimSpace(reader.Attribute(popIdx))
		if pop == "" {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		mp := polygonToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		ranges = append(ranges, Range{
			Population: pop,
			Geom:       mp,
			Area:       multiPolygonArea(mp),
		})
	}

	if skipped > 0 {
		log.Warn("skipped shapefile records", zap.String("path", path), zap.Int("skipped", skipped))
	}
	log.Info("range shapefile loaded", zap.String("path", path), zap.Int("ranges", len(ranges)))

	return NewRangeSet(frame, ranges)
}

// fieldIndex returns the index of a named field in the shapefile, or -1
// if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// polygonToMultiPolygon converts a shapefile Polygon to a geom
// MultiPolygon. Shapefile parts wind clockwise for outer rings and
// counter-clockwise for holes; holes attach to the preceding outer ring.
func polygonToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	var cur *geom.Polygon

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		outer := signedRingArea(flat) <= 0 // clockwise
		if cur == nil || outer {
			if cur != nil {
				if err := mp.Push(cur); err != nil {
					zap.L().Debug("geo: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
				}
			}
			cur = geom.NewPolygon(geom.XY)
		}
		if err := cur.Push(ring); err != nil {
			zap.L().Debug("geo: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	if cur != nil {
		if err := mp.Push(cur); err != nil {
			zap.L().Debug("geo: skipping malformed polygon part", zap.Error(err))
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// EncodeGeom serializes a range geometry to EWKB for persistence.
func EncodeGeom(mp *geom.MultiPolygon) ([]byte, error) {
	data, err := ewkb.Marshal(mp, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "geo: encode EWKB")
	}
	return data, nil
}

// DecodeGeom deserializes an EWKB range geometry.
func DecodeGeom(data []byte) (*geom.MultiPolygon, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "geo: decode EWKB")
	}
	mp, ok := g.(*geom.MultiPolygon)
	if !ok {
		return nil, eris.Errorf("geo: unexpected geometry type %T", g)
	}
	return mp, nil
}
