// Package factory provides a small generic registry used to instantiate modules
// from configuration. Physics models and metrics sinks are both defined by a
// type string and a map of raw settings. Factories decode the settings into
// typed structs and return the concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[physics.Model]()
//	reg.Register("flywheel", func(conf map[string]any) (physics.Model, error) {
//	    var f physics.Flywheel
//	    if err := factory.Decode(conf, &f); err != nil {
//	        return nil, err
//	    }
//	    return f, nil
//	})
//	m, err := reg.Create(factory.ModuleConfig{Type: "flywheel", Conf: map[string]any{"inertia": 1000}})
package factory
