package manager

import (
	"log"

	"github.com/sarchlab/memsim/sim"
)

// Builder assembles manager components.
type Builder struct {
	engine sim.Engine
	config Config
}

// MakeBuilder returns a new Builder with the reference configuration.
func MakeBuilder() Builder {
	return Builder{
		config: DefaultConfig(),
	}
}

// WithEngine sets the engine that drives the component.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithConfig sets the initial run configuration.
func (b Builder) WithConfig(config Config) Builder {
	b.config = config
	return b
}

// Build builds a manager component. The initial configuration must be valid.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(
		name, b.engine, b.config.StepFreq, c)

	if err := c.Configure(b.config); err != nil {
		log.Panicf("cannot configure %s: %s", name, err)
	}

	return c
}
