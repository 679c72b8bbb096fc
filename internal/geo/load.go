package geo

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// maxZipMember caps one extracted shapefile component.
const maxZipMember = 1 << 30

// shapefileParts are the archive members a shapefile layer needs.
var shapefileParts = map[string]bool{".shp": true, ".shx": true, ".dbf": true, ".prj": true, ".cpg": true}

// Load opens a boundary layer by extension: .shp, .geojson/.json, or a .zip holding
// a shapefile.
func Load(path string, cols ColumnMap) (*Layer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		return LoadShapefile(path, cols)
	case ".geojson", ".json":
		return LoadGeoJSON(path, cols)
	case ".zip":
		return loadZippedShapefile(path, cols)
	default:
		return nil, eris.Errorf("geo: unsupported boundary format %q", path)
	}
}

// loadZippedShapefile extracts the shapefile members of a .zip and loads them.
// When the archive holds several layers the first by name is used.
func loadZippedShapefile(zipPath string, cols ColumnMap) (*Layer, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open %s", zipPath)
	}
	defer zr.Close() //nolint:errcheck

	stems := shapefileStems(zr.File)
	if len(stems) == 0 {
		return nil, eris.Errorf("geo: no .shp file in %s", zipPath)
	}
	if len(stems) > 1 {
		zap.L().Warn("zip holds several shapefiles, using the first",
			zap.String("path", zipPath), zap.Strings("layers", stems))
	}

	dir, err := os.MkdirTemp("", "boundary-*")
	if err != nil {
		return nil, eris.Wrap(err, "geo: create extract dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	stem := stems[0]
	for _, f := range zr.File {
		name := filepath.Base(f.Name)
		ext := strings.ToLower(filepath.Ext(name))
		if f.FileInfo().IsDir() || !shapefileParts[ext] || strings.TrimSuffix(name, filepath.Ext(name)) != stem {
			continue
		}
		// go-shp finds sidecars by the .shp name with a lower-case extension
		if err := extractMember(f, filepath.Join(dir, stem+ext)); err != nil {
			return nil, eris.Wrapf(err, "geo: extract %s", f.Name)
		}
	}

	layer, err := LoadShapefile(filepath.Join(dir, stem+".shp"), cols)
	if err != nil {
		return nil, err
	}
	layer.Source = zipPath
	return layer, nil
}

// shapefileStems returns the sorted base names of the .shp members.
func shapefileStems(files []*zip.File) []string {
	var stems []string
	for _, f := range files {
		name := filepath.Base(f.Name)
		if !f.FileInfo().IsDir() && strings.EqualFold(filepath.Ext(name), ".shp") {
			stems = append(stems, strings.TrimSuffix(name, filepath.Ext(name)))
		}
	}
	sort.Strings(stems)
	return stems
}

func extractMember(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(out, io.LimitReader(rc, maxZipMember+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > maxZipMember {
		return eris.Errorf("member larger than %d bytes", maxZipMember)
	}
	return nil
}
