// Package bandplan loads the YAML band-limit lists referenced from a rig's
// INI configuration section into rig.Limits values.
package bandplan

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kb9ovo/rttytrx/internal/rig"
	"github.com/kb9ovo/rttytrx/internal/rigerr"
)

// limit mirrors rig.BandLimit with yaml tags; kept distinct from rig.BandLimit
// so this package owns its own wire format independent of the rig package's
// Go-side representation.
type limit struct {
	Name string `yaml:"name"`
	Low  uint64 `yaml:"low"`
	High uint64 `yaml:"high"`
}

// document is the top-level shape of a bandplan.yaml file: separate RX and
// TX lists, since a region's permitted transmit bands are usually a strict
// subset of what the receiver can tune.
type document struct {
	RX []limit `yaml:"rx"`
	TX []limit `yaml:"tx"`
}

// Load reads and parses a bandplan YAML file into a rig.Limits value. A
// missing or empty list on either side means "unrestricted", per
// rig.Limits.CheckRX/CheckTX.
func Load(path string) (rig.Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return rig.Limits{}, rigerr.New(rigerr.Fatal, "reading bandplan %s: %v", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return rig.Limits{}, rigerr.New(rigerr.ProtocolError, "parsing bandplan %s: %v", path, err)
	}

	return rig.Limits{RX: toBandLimits(doc.RX), TX: toBandLimits(doc.TX)}, nil
}

func toBandLimits(in []limit) []rig.BandLimit {
	if len(in) == 0 {
		return nil
	}
	out := make([]rig.BandLimit, len(in))
	for i, l := range in {
		out[i] = rig.BandLimit{Name: l.Name, Low: l.Low, High: l.High}
	}
	return out
}
