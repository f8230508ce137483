package zonalio

import (
	"errors"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/sirupsen/logrus"

	"zonal-tools/zonaltools"
)

// VectorOptions controls how features are read.
type VectorOptions struct {
	// Layer selects a layer by name; the first layer is used when empty.
	Layer string
	// TargetCRS reprojects geometries, normally to the imagery CRS.
	TargetCRS zonaltools.CRS
	// Buffer expands every polygon by this distance in TargetCRS units.
	Buffer float64
}

// ReadFeatures reads all polygon features of a vector dataset. Attribute
// values are stringified. Non-polygonal features are skipped with a warning.
func ReadFeatures(path string, opts VectorOptions) (features []zonaltools.Feature, err error) {
	godal.RegisterAll()

	ds, err := godal.Open(path, godal.VectorOnly())
	if err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, ds.Close())
	}()

	layer, err := pickLayer(ds, opts.Layer)
	if err != nil {
		return nil, err
	}

	var target *godal.SpatialRef
	if opts.TargetCRS != "" {
		if target, err = spatialRef(opts.TargetCRS); err != nil {
			return nil, err
		}
		defer target.Close()
	}
	lonLat, err := wgs84()
	if err != nil {
		return nil, err
	}
	defer lonLat.Close()

	layerCRS, err := NormalizeCRS(layer.SpatialRef())
	if err != nil {
		return nil, fmt.Errorf("layer %s: %w", layer.Name(), err)
	}

	for ogrFeature := layer.NextFeature(); ogrFeature != nil; ogrFeature = layer.NextFeature() {
		index := len(features)
		f, ok, err := convertFeature(ogrFeature, index, layerCRS, target, lonLat, opts)
		ogrFeature.Close()
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", index, err)
		}
		if !ok {
			logrus.Warnf("Skipping non-polygonal feature %d in %s", index, path)
			continue
		}
		features = append(features, f)
	}
	logrus.Infof("Read %d features from %s (%s)", len(features), path, layerCRS)
	return features, nil
}

func pickLayer(ds *godal.Dataset, name string) (godal.Layer, error) {
	layers := ds.Layers()
	if len(layers) == 0 {
		return godal.Layer{}, errors.New("dataset has no vector layers")
	}
	if name == "" {
		return layers[0], nil
	}
	for _, l := range layers {
		if l.Name() == name {
			return l, nil
		}
	}
	return godal.Layer{}, fmt.Errorf("layer %q not found", name)
}

func convertFeature(ogrFeature *godal.Feature, index int, layerCRS zonaltools.CRS,
	target, lonLat *godal.SpatialRef, opts VectorOptions) (zonaltools.Feature, bool, error) {
	attrs := make(map[string]string)
	for name, field := range ogrFeature.Fields() {
		attrs[name] = field.String()
	}

	g := ogrFeature.Geometry()
	if g == nil || g.Empty() {
		return zonaltools.Feature{}, false, nil
	}
	defer g.Close()

	crs := layerCRS
	if target != nil {
		if err := g.Reproject(target); err != nil {
			return zonaltools.Feature{}, false, err
		}
		crs = opts.TargetCRS
	}
	if opts.Buffer != 0 {
		buffered, err := Buffer(g, opts.Buffer)
		if err != nil {
			return zonaltools.Feature{}, false, err
		}
		defer buffered.Close()
		g = buffered
	}

	poly, err := polygonal(g)
	if err != nil {
		logrus.Debug(err)
		return zonaltools.Feature{}, false, nil
	}

	f := zonaltools.Feature{Index: index, Attributes: attrs, Geometry: poly, CRS: crs}
	if b, err := g.Bounds(lonLat); err == nil {
		f.Centroid = &zonaltools.LngLat{Lng: (b[0] + b[2]) / 2, Lat: (b[1] + b[3]) / 2}
	} else {
		logrus.Debugf("No lng/lat centroid for feature %d: %v", index, err)
	}
	return f, true, nil
}
