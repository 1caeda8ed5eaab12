package definitions

import (
	"bytes"

	"github.com/hupe1980/perfdefs/internal/conv"
	"github.com/hupe1980/perfdefs/internal/hash"
)

// DefineString interns s.
func (m *Manager) DefineString(s string) (Handle, error) {
	n, err := conv.ToUint32(len(s))
	if err != nil {
		return Invalid, err
	}
	return define(m, KindString, stringHeaderSize+len(s), hash.String64(s),
		func(r *stringRecord, b []byte) {
			r.length = n
			copy(b[stringHeaderSize:], s)
		},
		func(e, c *stringRecord) bool {
			return e.length == c.length && bytes.Equal(e.bytes(), c.bytes())
		},
		nil,
	)
}

// DefineSourceFile interns a source file named by the string sf.Name.
func (m *Manager) DefineSourceFile(sf SourceFile) (Handle, error) {
	nameHash, err := m.ref(sf.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindSourceFile, sizeOf[sourceFileRecord](),
		hash.New().Uint64(nameHash).Sum64(),
		func(r *sourceFileRecord, _ []byte) {
			r.name = sf.Name
		},
		func(e, c *sourceFileRecord) bool {
			return e.name == c.name
		},
		nil,
	)
}

// DefineRegion interns a region. Description and File may be Invalid.
func (m *Manager) DefineRegion(rg Region) (Handle, error) {
	name, err := m.ref(rg.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	canonical, err := m.ref(rg.CanonicalName, KindString, false)
	if err != nil {
		return Invalid, err
	}
	desc, err := m.ref(rg.Description, KindString, true)
	if err != nil {
		return Invalid, err
	}
	file, err := m.ref(rg.File, KindSourceFile, true)
	if err != nil {
		return Invalid, err
	}

	h := hash.New().
		Uint64(name).
		Uint64(canonical).
		Uint64(desc).
		Uint64(file).
		Uint32(rg.BeginLine).
		Uint32(rg.EndLine).
		Uint32(uint32(rg.Type)).
		Uint32(uint32(rg.Paradigm)).
		Uint32(rg.Flags).
		Sum64()

	return define(m, KindRegion, sizeOf[regionRecord](), h,
		func(r *regionRecord, _ []byte) {
			r.name = rg.Name
			r.canonicalName = rg.CanonicalName
			r.description = rg.Description
			r.file = rg.File
			r.beginLine = rg.BeginLine
			r.endLine = rg.EndLine
			r.regionType = rg.Type
			r.paradigm = rg.Paradigm
			r.flags = rg.Flags
		},
		func(e, c *regionRecord) bool {
			return e.name == c.name &&
				e.canonicalName == c.canonicalName &&
				e.description == c.description &&
				e.file == c.file &&
				e.beginLine == c.beginLine &&
				e.endLine == c.endLine &&
				e.regionType == c.regionType &&
				e.paradigm == c.paradigm &&
				e.flags == c.flags
		},
		nil,
	)
}

// DefineParameter interns a parameter.
func (m *Manager) DefineParameter(p Parameter) (Handle, error) {
	name, err := m.ref(p.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindParameter, sizeOf[parameterRecord](),
		hash.New().Uint64(name).Uint32(uint32(p.Type)).Sum64(),
		func(r *parameterRecord, _ []byte) {
			r.name = p.Name
			r.parameterType = p.Type
		},
		func(e, c *parameterRecord) bool {
			return e.name == c.name && e.parameterType == c.parameterType
		},
		nil,
	)
}

// DefineProperty records a property value. A property is identified by its ID
// alone: a second definition with the same ID merges its value into the existing
// record using the existing record's condition and returns the existing handle.
func (m *Manager) DefineProperty(p Property) (Handle, error) {
	return define(m, KindProperty, sizeOf[propertyRecord](),
		hash.New().Uint32(uint32(p.ID)).Sum64(),
		func(r *propertyRecord, _ []byte) {
			r.id = p.ID
			r.condition = p.Condition
			r.value = boolToUint32(p.Value)
		},
		func(e, c *propertyRecord) bool {
			return e.id == c.id
		},
		func(e, c *propertyRecord) {
			e.value = boolToUint32(e.condition.Combine(e.value != 0, c.value != 0))
		},
	)
}

// DefineSystemTreeNode interns a system-tree node. Parent and Class may be Invalid.
func (m *Manager) DefineSystemTreeNode(n SystemTreeNode) (Handle, error) {
	parent, err := m.ref(n.Parent, KindSystemTreeNode, true)
	if err != nil {
		return Invalid, err
	}
	class, err := m.ref(n.Class, KindString, true)
	if err != nil {
		return Invalid, err
	}
	name, err := m.ref(n.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindSystemTreeNode, sizeOf[systemTreeNodeRecord](),
		hash.New().Uint64(parent).Uint32(uint32(n.Domains)).Uint64(class).Uint64(name).Sum64(),
		func(r *systemTreeNodeRecord, _ []byte) {
			r.parent = n.Parent
			r.domains = n.Domains
			r.class = n.Class
			r.name = n.Name
		},
		func(e, c *systemTreeNodeRecord) bool {
			return e.parent == c.parent && e.domains == c.domains && e.class == c.class && e.name == c.name
		},
		nil,
	)
}

// DefineLocationGroup interns a location group. SystemTreeParent may be Invalid.
func (m *Manager) DefineLocationGroup(g LocationGroup) (Handle, error) {
	name, err := m.ref(g.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	parent, err := m.ref(g.SystemTreeParent, KindSystemTreeNode, true)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindLocationGroup, sizeOf[locationGroupRecord](),
		hash.New().Uint32(g.GlobalID).Uint64(name).Uint32(uint32(g.Type)).Uint64(parent).Sum64(),
		func(r *locationGroupRecord, _ []byte) {
			r.globalID = g.GlobalID
			r.name = g.Name
			r.groupType = g.Type
			r.systemTreeParent = g.SystemTreeParent
		},
		func(e, c *locationGroupRecord) bool {
			return e.globalID == c.globalID && e.name == c.name &&
				e.groupType == c.groupType && e.systemTreeParent == c.systemTreeParent
		},
		nil,
	)
}

// DefineLocation interns a location.
func (m *Manager) DefineLocation(l Location) (Handle, error) {
	name, err := m.ref(l.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	group, err := m.ref(l.Group, KindLocationGroup, false)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindLocation, sizeOf[locationRecord](),
		hash.New().Uint64(l.GlobalID).Uint64(name).Uint32(uint32(l.Type)).Uint64(group).Sum64(),
		func(r *locationRecord, _ []byte) {
			r.globalID = l.GlobalID
			r.name = l.Name
			r.locationType = l.Type
			r.group = l.Group
		},
		func(e, c *locationRecord) bool {
			return e.globalID == c.globalID && e.name == c.name &&
				e.locationType == c.locationType && e.group == c.group
		},
		nil,
	)
}

// DefineMetric interns a metric. Description and Unit may be Invalid.
func (m *Manager) DefineMetric(mt Metric) (Handle, error) {
	name, err := m.ref(mt.Name, KindString, false)
	if err != nil {
		return Invalid, err
	}
	desc, err := m.ref(mt.Description, KindString, true)
	if err != nil {
		return Invalid, err
	}
	unit, err := m.ref(mt.Unit, KindString, true)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindMetric, sizeOf[metricRecord](),
		hash.New().Uint64(name).Uint64(desc).Uint64(unit).
			Uint32(uint32(mt.ValueType)).Uint32(uint32(mt.Mode)).Sum64(),
		func(r *metricRecord, _ []byte) {
			r.name = mt.Name
			r.description = mt.Description
			r.unit = mt.Unit
			r.valueType = mt.ValueType
			r.mode = mt.Mode
		},
		func(e, c *metricRecord) bool {
			return e.name == c.name && e.description == c.description && e.unit == c.unit &&
				e.valueType == c.valueType && e.mode == c.mode
		},
		nil,
	)
}

// DefineCallpath interns a call path. Parent is Invalid for a root.
func (m *Manager) DefineCallpath(cp Callpath) (Handle, error) {
	parent, err := m.ref(cp.Parent, KindCallpath, true)
	if err != nil {
		return Invalid, err
	}
	region, err := m.ref(cp.Region, KindRegion, false)
	if err != nil {
		return Invalid, err
	}
	return define(m, KindCallpath, sizeOf[callpathRecord](),
		hash.New().Uint64(parent).Uint64(region).Sum64(),
		func(r *callpathRecord, _ []byte) {
			r.parent = cp.Parent
			r.region = cp.Region
		},
		func(e, c *callpathRecord) bool {
			return e.parent == c.parent && e.region == c.region
		},
		nil,
	)
}
