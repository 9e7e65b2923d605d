package mappackservice

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	mappackdb "github.com/edelkas/inne-sub000/app/modules/mappack/infrastructure/repositories"
	"github.com/edelkas/inne-sub000/pkg/npp"
	"gopkg.in/ini.v1"
)

// InfoFile is the optional metadata file of a mappack version directory.
const InfoFile = "mappack.info"

// applyInfo copies the [mappack] section of the info file onto the mappack.
// Keys that are absent leave the current values alone.
func (s *MappackService) applyInfo(pack *mappackdb.Mappack, dir string) error {
	path := filepath.Join(dir, InfoFile)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return npp.Errorf("mappack.Seed", npp.ErrFormat, "%s: %w", path, err)
	}
	sec := cfg.Section("mappack")
	if sec.HasKey("name") {
		pack.Name = sec.Key("name").String()
	}
	if sec.HasKey("authors") {
		pack.Authors = sec.Key("authors").String()
	}
	if sec.HasKey("date") {
		pack.Date = sec.Key("date").String()
	}
	if sec.HasKey("enabled") {
		pack.Enabled = sec.Key("enabled").MustBool(true)
	}
	if sec.HasKey("fractional") {
		pack.Fractional = sec.Key("fractional").MustBool(false)
	}
	return nil
}
