package config

import (
	"reflect"
	"sort"
)

// Changed lists the top-level sections that differ between two configs.
// Credentials are compared but only ever reported as "credentials".
func Changed(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	sections := []struct {
		name     string
		old, new any
	}{
		{"linkedin", oldCfg.LinkedIn, newCfg.LinkedIn},
		{"messaging", oldCfg.Messaging, newCfg.Messaging},
		{"safety", oldCfg.Safety, newCfg.Safety},
		{"recipients", oldCfg.Recipients, newCfg.Recipients},
		{"browser", oldCfg.Browser, newCfg.Browser},
		{"storage", oldCfg.Storage, newCfg.Storage},
		{"logging", oldCfg.Logging, newCfg.Logging},
		{"notify", oldCfg.Notify, newCfg.Notify},
		{"schedule", oldCfg.Schedule, newCfg.Schedule},
		{"credentials", oldCfg.Credentials, newCfg.Credentials},
	}
	var out []string
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			out = append(out, s.name)
		}
	}
	sort.Strings(out)
	return out
}
