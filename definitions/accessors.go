package definitions

// StringValue returns the content of a string definition.
func (m *Manager) StringValue(h Handle) (string, error) {
	b, err := m.lookup(h, KindString)
	if err != nil {
		return "", err
	}
	return string(view[stringRecord](b).bytes()), nil
}

// SourceFile returns the attributes of a source-file definition.
func (m *Manager) SourceFile(h Handle) (SourceFile, error) {
	b, err := m.lookup(h, KindSourceFile)
	if err != nil {
		return SourceFile{}, err
	}
	return SourceFile{Name: view[sourceFileRecord](b).name}, nil
}

// Region returns the attributes of a region definition.
func (m *Manager) Region(h Handle) (Region, error) {
	b, err := m.lookup(h, KindRegion)
	if err != nil {
		return Region{}, err
	}
	r := view[regionRecord](b)
	return Region{
		Name:          r.name,
		CanonicalName: r.canonicalName,
		Description:   r.description,
		File:          r.file,
		BeginLine:     r.beginLine,
		EndLine:       r.endLine,
		Type:          r.regionType,
		Paradigm:      r.paradigm,
		Flags:         r.flags,
	}, nil
}

// Parameter returns the attributes of a parameter definition.
func (m *Manager) Parameter(h Handle) (Parameter, error) {
	b, err := m.lookup(h, KindParameter)
	if err != nil {
		return Parameter{}, err
	}
	r := view[parameterRecord](b)
	return Parameter{Name: r.name, Type: r.parameterType}, nil
}

// Property returns the current state of a property definition.
func (m *Manager) Property(h Handle) (Property, error) {
	b, err := m.lookup(h, KindProperty)
	if err != nil {
		return Property{}, err
	}
	ks := &m.kinds[KindProperty]
	ks.mu.Lock()
	defer ks.mu.Unlock()
	r := view[propertyRecord](b)
	return Property{ID: r.id, Condition: r.condition, Value: r.value != 0}, nil
}

// SystemTreeNode returns the attributes of a system-tree node definition.
func (m *Manager) SystemTreeNode(h Handle) (SystemTreeNode, error) {
	b, err := m.lookup(h, KindSystemTreeNode)
	if err != nil {
		return SystemTreeNode{}, err
	}
	r := view[systemTreeNodeRecord](b)
	return SystemTreeNode{Parent: r.parent, Domains: r.domains, Class: r.class, Name: r.name}, nil
}

// LocationGroup returns the attributes of a location-group definition.
func (m *Manager) LocationGroup(h Handle) (LocationGroup, error) {
	b, err := m.lookup(h, KindLocationGroup)
	if err != nil {
		return LocationGroup{}, err
	}
	r := view[locationGroupRecord](b)
	return LocationGroup{
		GlobalID:         r.globalID,
		Name:             r.name,
		Type:             r.groupType,
		SystemTreeParent: r.systemTreeParent,
	}, nil
}

// Location returns the attributes of a location definition.
func (m *Manager) Location(h Handle) (Location, error) {
	b, err := m.lookup(h, KindLocation)
	if err != nil {
		return Location{}, err
	}
	r := view[locationRecord](b)
	return Location{GlobalID: r.globalID, Name: r.name, Type: r.locationType, Group: r.group}, nil
}

// Metric returns the attributes of a metric definition.
func (m *Manager) Metric(h Handle) (Metric, error) {
	b, err := m.lookup(h, KindMetric)
	if err != nil {
		return Metric{}, err
	}
	r := view[metricRecord](b)
	return Metric{
		Name:        r.name,
		Description: r.description,
		Unit:        r.unit,
		ValueType:   r.valueType,
		Mode:        r.mode,
	}, nil
}

// Callpath returns the attributes of a call-path definition.
func (m *Manager) Callpath(h Handle) (Callpath, error) {
	b, err := m.lookup(h, KindCallpath)
	if err != nil {
		return Callpath{}, err
	}
	r := view[callpathRecord](b)
	return Callpath{Parent: r.parent, Region: r.region}, nil
}
