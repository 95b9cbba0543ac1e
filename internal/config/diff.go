package config

import (
	"reflect"

	"github.com/MrWong99/lingoxa/internal/scenario"
)

// ConfigDiff describes the changes between two configs. Only the log level
// and the scenarios are applied while running; every other changed section
// is named in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// Scenario changes are keyed by scenario ID.
	ScenariosAdded   []scenario.Scenario
	ScenariosChanged []scenario.Scenario
	ScenariosRemoved []string

	// RestartRequired lists changed sections such as "providers" or
	// "archive".
	RestartRequired []string
}

// Empty reports whether the diff carries no change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged &&
		len(d.ScenariosAdded) == 0 &&
		len(d.ScenariosChanged) == 0 &&
		len(d.ScenariosRemoved) == 0 &&
		len(d.RestartRequired) == 0
}

// Diff compares old and new. Scenario order follows new for additions and
// changes and old for removals.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	before := make(map[string]scenario.Scenario, len(old.Scenarios))
	for _, s := range old.Scenarios {
		before[s.ID] = s
	}
	after := make(map[string]struct{}, len(new.Scenarios))
	for _, s := range new.Scenarios {
		after[s.ID] = struct{}{}
		prev, existed := before[s.ID]
		switch {
		case !existed:
			d.ScenariosAdded = append(d.ScenariosAdded, s)
		case !reflect.DeepEqual(prev, s):
			d.ScenariosChanged = append(d.ScenariosChanged, s)
		}
	}
	for _, s := range old.Scenarios {
		if _, kept := after[s.ID]; !kept {
			d.ScenariosRemoved = append(d.ScenariosRemoved, s.ID)
		}
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"server.listen_addr", old.Server.ListenAddr, new.Server.ListenAddr},
		{"server.tls", old.Server.TLS, new.Server.TLS},
		{"providers", old.Providers, new.Providers},
		{"practice", old.Practice, new.Practice},
		{"archive", old.Archive, new.Archive},
	}
	for _, sec := range sections {
		if !reflect.DeepEqual(sec.old, sec.new) {
			d.RestartRequired = append(d.RestartRequired, sec.name)
		}
	}
	return d
}
