package config

import (
	"io"
	"path/filepath"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

// durations are rendered in their human readable form
func (c *Config) yamlDoc() yaml.MapSlice {
	rdb := c.RefDatabase
	return yaml.MapSlice{
		{Key: "ref-database", Value: yaml.MapSlice{
			{Key: "enabled", Value: rdb.Enabled},
			{Key: "storeAllRefs", Value: nonNil(rdb.StoreAllRefs)},
			{Key: "storeMutableRefs", Value: nonNil(rdb.StoreMutableRefs)},
			{Key: "storeNoRefs", Value: nonNil(rdb.StoreNoRefs)},
			{Key: "ignoredRefsPrefixes", Value: nonNil(rdb.IgnoredRefsPrefixes)},
			{Key: "lockTimeout", Value: rdb.LockTimeout.String()},
			{Key: "backend", Value: yaml.MapSlice{
				{Key: "type", Value: rdb.Backend.Type},
				{Key: "path", Value: rdb.Backend.Path},
				{Key: "inMemory", Value: rdb.Backend.InMemory},
				{Key: "syncWrites", Value: rdb.Backend.SyncWrites},
				{Key: "lockTTL", Value: rdb.Backend.LockTTL.String()},
			}},
		}},
		{Key: "projects", Value: yaml.MapSlice{
			{Key: "pattern", Value: nonNil(c.Projects.Pattern)},
		}},
		{Key: "event", Value: yaml.MapSlice{
			{Key: "enableDraftCommentEvents", Value: c.Event.EnableDraftCommentEvents},
		}},
		{Key: "log", Value: yaml.MapSlice{
			{Key: "level", Value: c.Log.Level},
			{Key: "audit", Value: c.Log.Audit},
		}},
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Generate renders the configuration as yaml
func Generate(w io.Writer, c *Config) error {
	o, err := yaml.Marshal(c.yamlDoc())
	if err != nil {
		return ErrConfig.Wrap(err)
	}
	_, err = w.Write(o)
	return err
}

// Write the configuration as a yaml file, creating its folder if needed
func Write(fs afero.Fs, file string, c *Config) error {
	if err := fs.MkdirAll(filepath.Dir(file), 0700); err != nil {
		return err
	}
	f, err := fs.Create(file)
	if err != nil {
		return err
	}
	if err := Generate(f, c); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
