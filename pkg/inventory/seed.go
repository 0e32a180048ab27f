package inventory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cxdash/cxdash/pkg/util"
)

// seedFile is the YAML shape of an inventory seed, loaded once at startup.
type seedFile struct {
	Switches []Switch `yaml:"switches"`
	Central  []Switch `yaml:"central"`
}

// LoadSeed populates the store from a YAML file. Entries under `central` get
// KindCentral regardless of what the entry says. Individual bad entries are
// logged and skipped so one typo does not empty the whole inventory.
func (s *Store) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading inventory seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parsing inventory seed %s: %w", path, err)
	}

	loaded := 0
	for _, sw := range seed.Switches {
		if _, err := s.Add(sw); err != nil {
			util.Warnf("inventory seed: skipping %q: %v", sw.Name, err)
			continue
		}
		loaded++
	}
	for _, sw := range seed.Central {
		sw.Kind = KindCentral
		if _, err := s.Add(sw); err != nil {
			util.Warnf("inventory seed: skipping %q: %v", sw.Name, err)
			continue
		}
		loaded++
	}

	util.Infof("inventory seed: loaded %d switches from %s", loaded, path)
	return nil
}
