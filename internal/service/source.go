package service

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// sourceTypes maps the extensions overlays and prep commands read.
var sourceTypes = map[string]string{
	".geojson": "GeoJSON",
	".json":    "GeoJSON",
	".kml":     "KML",
	".csv":     "CSV",
	".png":     "PNG",
	".zip":     "Archive",
}

// SourceService lists the data files under the data directory.
type SourceService struct {
	dataDir string
}

// NewSourceService creates a source service rooted at dataDir.
func NewSourceService(dataDir string) *SourceService {
	return &SourceService{dataDir: dataDir}
}

// List returns every recognized file under the data directory, sorted by
// path. A missing directory yields an empty list.
func (s *SourceService) List() ([]SourceFile, error) {
	files := []SourceFile{}
	err := filepath.WalkDir(s.dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dataDir {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			// skip the duckdb working directory and dotfiles
			if path != s.dataDir && (d.Name() == "duckdb" || strings.HasPrefix(d.Name(), ".")) {
				return fs.SkipDir
			}
			return nil
		}
		fileType, ok := sourceTypes[strings.ToLower(filepath.Ext(d.Name()))]
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(s.dataDir, path)
		if err != nil {
			return err
		}
		files = append(files, SourceFile{
			Name:     filepath.ToSlash(rel),
			Size:     humanize.Bytes(uint64(info.Size())),
			Modified: humanize.Time(info.ModTime()),
			FileType: fileType,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(files, func(a, b SourceFile) int { return strings.Compare(a.Name, b.Name) })
	return files, nil
}

// DataDir returns the directory files are listed from.
func (s *SourceService) DataDir() string {
	return s.dataDir
}
