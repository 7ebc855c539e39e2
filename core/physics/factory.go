package physics

import "github.com/kilianp07/hess/core/factory"

var registry = factory.NewRegistry[Model]()

type defaulter interface {
	defaults()
	Model
}

// register decodes conf into a fresh T, applies its defaults and validates.
func register[T any, P interface {
	*T
	defaulter
}](k Kind) {
	_ = registry.Register(k.String(), func(conf map[string]any) (Model, error) {
		var v T
		if err := factory.Decode(conf, &v); err != nil {
			return nil, err
		}
		P(&v).defaults()
		m := any(v).(Model)
		if err := m.Validate(); err != nil {
			return nil, err
		}
		return m, nil
	})
}

func init() {
	register[GenericBattery](KindGenericBattery)
	register[PumpedHydro](KindPumpedHydro)
	register[Hydrogen](KindHydrogen)
	register[Thermal](KindThermal)
	register[CompressedAir](KindCompressedAir)
	register[Flywheel](KindFlywheel)
	register[Supercapacitor](KindSupercapacitor)
	register[SMES](KindSMES)
}

// New builds a validated physics model from its module configuration.
func New(cfg factory.ModuleConfig) (Model, error) {
	return registry.Create(cfg)
}
