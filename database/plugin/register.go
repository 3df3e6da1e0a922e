// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package plugin

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/pflag"
)

type PluginType int

const (
	PluginTypeStorage PluginType = 1
)

const envVarPrefix = "VETRA"

func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeStorage:
		return "storage"
	default:
		return "unknown"
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = 1
	PluginOptionTypeBool   PluginOptionType = 2
	PluginOptionTypeInt    PluginOptionType = 3
	PluginOptionTypeUint   PluginOptionType = 4
)

type PluginOption struct {
	Dest         any
	DefaultValue any
	Name         string
	Description  string
	Type         PluginOptionType
}

type PluginEntry struct {
	NewFromOptionsFunc func() Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

var (
	pluginEntries      []PluginEntry
	pluginEntriesMutex sync.Mutex
)

// Register adds a plugin to the registry. It is meant to be called from init()
func Register(pluginEntry PluginEntry) {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	pluginEntries = append(pluginEntries, pluginEntry)
}

// GetPlugins returns the registered plugins of the given type, sorted by name
func GetPlugins(pluginType PluginType) []PluginEntry {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	ret := []PluginEntry{}
	for _, p := range pluginEntries {
		if p.Type == pluginType {
			ret = append(ret, p)
		}
	}
	slices.SortFunc(ret, func(a, b PluginEntry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ret
}

// GetPlugin returns a new instance of the named plugin, or nil if it's not registered
func GetPlugin(pluginType PluginType, name string) Plugin {
	pluginEntriesMutex.Lock()
	var newFunc func() Plugin
	for _, p := range pluginEntries {
		if p.Type == pluginType && p.Name == name {
			newFunc = p.NewFromOptionsFunc
			break
		}
	}
	pluginEntriesMutex.Unlock()
	if newFunc == nil {
		return nil
	}
	return newFunc()
}

// PopulateCmdlineOptions adds a flag for each plugin option, named
// <type>-<plugin>-<option>
func PopulateCmdlineOptions(fs *pflag.FlagSet) error {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	for _, p := range pluginEntries {
		for _, opt := range p.Options {
			flagName := fmt.Sprintf(
				"%s-%s-%s",
				PluginTypeName(p.Type),
				p.Name,
				opt.Name,
			)
			if err := opt.addFlag(fs, flagName); err != nil {
				return fmt.Errorf(
					"%s plugin '%s': %w",
					PluginTypeName(p.Type),
					p.Name,
					err,
				)
			}
		}
	}
	return nil
}

// ProcessConfig applies plugin options from a config file. The map is keyed
// by plugin type name, then plugin name, then option name
func ProcessConfig(pluginConfig map[string]map[string]map[string]any) error {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	for _, p := range pluginEntries {
		typeConfig, ok := pluginConfig[PluginTypeName(p.Type)]
		if !ok {
			continue
		}
		optionValues, ok := typeConfig[p.Name]
		if !ok {
			continue
		}
		for _, opt := range p.Options {
			val, ok := optionValues[opt.Name]
			if !ok {
				continue
			}
			if err := opt.assignAny(val); err != nil {
				return fmt.Errorf(
					"%s plugin '%s' option '%s': %w",
					PluginTypeName(p.Type),
					p.Name,
					opt.Name,
					err,
				)
			}
		}
	}
	return nil
}

// ProcessEnvVars applies plugin options from environment variables named
// VETRA_<TYPE>_<PLUGIN>_<OPTION>, upper-cased with dashes as underscores
func ProcessEnvVars() error {
	pluginEntriesMutex.Lock()
	defer pluginEntriesMutex.Unlock()
	for _, p := range pluginEntries {
		for _, opt := range p.Options {
			envName := strings.ToUpper(
				strings.ReplaceAll(
					fmt.Sprintf(
						"%s_%s_%s_%s",
						envVarPrefix,
						PluginTypeName(p.Type),
						p.Name,
						opt.Name,
					),
					"-",
					"_",
				),
			)
			val, ok := os.LookupEnv(envName)
			if !ok {
				continue
			}
			if err := opt.assignString(val); err != nil {
				return fmt.Errorf("%s: %w", envName, err)
			}
		}
	}
	return nil
}

func (o PluginOption) addFlag(fs *pflag.FlagSet, flagName string) error {
	switch o.Type {
	case PluginOptionTypeString:
		dest, ok := o.Dest.(*string)
		if !ok {
			return fmt.Errorf("option %s: expected *string destination", o.Name)
		}
		def, _ := o.DefaultValue.(string)
		fs.StringVar(dest, flagName, def, o.Description)
	case PluginOptionTypeBool:
		dest, ok := o.Dest.(*bool)
		if !ok {
			return fmt.Errorf("option %s: expected *bool destination", o.Name)
		}
		def, _ := o.DefaultValue.(bool)
		fs.BoolVar(dest, flagName, def, o.Description)
	case PluginOptionTypeInt:
		dest, ok := o.Dest.(*int)
		if !ok {
			return fmt.Errorf("option %s: expected *int destination", o.Name)
		}
		def, _ := o.DefaultValue.(int)
		fs.IntVar(dest, flagName, def, o.Description)
	case PluginOptionTypeUint:
		dest, ok := o.Dest.(*uint64)
		if !ok {
			return fmt.Errorf("option %s: expected *uint64 destination", o.Name)
		}
		def, _ := o.DefaultValue.(uint64)
		fs.Uint64Var(dest, flagName, def, o.Description)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", o.Type, o.Name)
	}
	return nil
}

// assign performs a type-checked assignment into the option destination
func (o PluginOption) assign(value any) error {
	if o.Dest == nil {
		return fmt.Errorf("nil destination for option %s", o.Name)
	}
	switch o.Type {
	case PluginOptionTypeString:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected string", o.Name)
		}
		dest, ok := o.Dest.(*string)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *string", o.Name)
		}
		*dest = v
	case PluginOptionTypeBool:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected bool", o.Name)
		}
		dest, ok := o.Dest.(*bool)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *bool", o.Name)
		}
		*dest = v
	case PluginOptionTypeInt:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("invalid type for option %s: expected int", o.Name)
		}
		dest, ok := o.Dest.(*int)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *int", o.Name)
		}
		*dest = v
	case PluginOptionTypeUint:
		var v uint64
		switch tv := value.(type) {
		case uint64:
			v = tv
		case int:
			if tv < 0 {
				return fmt.Errorf("invalid value for option %s: negative int", o.Name)
			}
			v = uint64(tv)
		default:
			return fmt.Errorf("invalid type for option %s: expected uint64 or int", o.Name)
		}
		dest, ok := o.Dest.(*uint64)
		if !ok || dest == nil {
			return fmt.Errorf("invalid destination for option %s: expected *uint64", o.Name)
		}
		*dest = v
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", o.Type, o.Name)
	}
	return nil
}

// assignAny accepts the loosely typed values produced by the YAML decoder
func (o PluginOption) assignAny(value any) error {
	if s, ok := value.(string); ok && o.Type != PluginOptionTypeString {
		return o.assignString(s)
	}
	return o.assign(value)
}

func (o PluginOption) assignString(value string) error {
	switch o.Type {
	case PluginOptionTypeString:
		return o.assign(value)
	case PluginOptionTypeBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		return o.assign(v)
	case PluginOptionTypeInt:
		v, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		return o.assign(v)
	case PluginOptionTypeUint:
		v, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		return o.assign(v)
	default:
		return fmt.Errorf("unknown plugin option type %d for option %s", o.Type, o.Name)
	}
}
