// Package plugins provides the routing plugins built into tempus.
package plugins

import (
	"tempus/plugin"
)

var builtin = []struct {
	name    string
	factory plugin.Factory
}{
	{RoadName, NewRoad},
	{PublicTransportName, NewPublicTransport},
	{MultimodalName, NewMultimodal},
	{DummyName, NewDummy},
}

// Register adds every built-in plugin to the registry.
func Register(r *plugin.Registry) error {
	for _, b := range builtin {
		if err := r.Register(b.name, b.factory); err != nil {
			return err
		}
	}
	return nil
}
