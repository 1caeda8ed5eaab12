package perfdefs

import (
	"context"

	"github.com/hupe1980/perfdefs/definitions"
)

// define runs fn on the local manager. Out-of-memory errors are fatal; all
// other errors are invalid arguments and returned as is.
func (m *Measurement) define(fn func(*definitions.Manager) (definitions.Handle, error)) (definitions.Handle, error) {
	m.defineMu.RLock()
	defer m.defineMu.RUnlock()

	if err := m.checkUsable(); err != nil {
		return definitions.Invalid, err
	}
	h, err := fn(m.local)
	if err != nil && isFatalDefine(err) {
		return definitions.Invalid, m.fail(context.Background(), SubsystemMemory, err)
	}
	return h, err
}

// DefineString interns s.
func (m *Measurement) DefineString(s string) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineString(s)
	})
}

// DefineSourceFile interns a source file.
func (m *Measurement) DefineSourceFile(sf definitions.SourceFile) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineSourceFile(sf)
	})
}

// DefineRegion interns a region.
func (m *Measurement) DefineRegion(r definitions.Region) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineRegion(r)
	})
}

// DefineParameter interns a parameter.
func (m *Measurement) DefineParameter(p definitions.Parameter) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineParameter(p)
	})
}

// DefineProperty interns a property, merging its value into an existing one.
func (m *Measurement) DefineProperty(p definitions.Property) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineProperty(p)
	})
}

// DefineSystemTreeNode interns a system tree node.
func (m *Measurement) DefineSystemTreeNode(n definitions.SystemTreeNode) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineSystemTreeNode(n)
	})
}

// DefineLocationGroup interns a location group.
func (m *Measurement) DefineLocationGroup(g definitions.LocationGroup) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineLocationGroup(g)
	})
}

// DefineLocation interns a location.
func (m *Measurement) DefineLocation(l definitions.Location) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineLocation(l)
	})
}

// DefineMetric interns a metric.
func (m *Measurement) DefineMetric(mt definitions.Metric) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineMetric(mt)
	})
}

// DefineCallpath interns a call path.
func (m *Measurement) DefineCallpath(cp definitions.Callpath) (definitions.Handle, error) {
	return m.define(func(dm *definitions.Manager) (definitions.Handle, error) {
		return dm.DefineCallpath(cp)
	})
}
