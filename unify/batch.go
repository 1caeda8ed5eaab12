package unify

import (
	"fmt"

	"github.com/hupe1980/perfdefs/definitions"
)

// Ref references a definition of a batch by sequence number plus one.
// The zero Ref references nothing.
type Ref uint32

// NoRef is the absent reference.
const NoRef Ref = 0

func refOf(seq uint32) Ref {
	return Ref(seq + 1)
}

// Seq returns the referenced sequence number. ok is false for NoRef.
func (r Ref) Seq() (seq uint32, ok bool) {
	if r == NoRef {
		return 0, false
	}
	return uint32(r) - 1, true
}

// SourceFile is the wire form of definitions.SourceFile.
type SourceFile struct {
	Name Ref `json:"name" cbor:"1,keyasint"`
}

// SystemTreeNode is the wire form of definitions.SystemTreeNode.
type SystemTreeNode struct {
	Parent  Ref                          `json:"parent,omitempty" cbor:"1,keyasint,omitempty"`
	Domains definitions.SystemTreeDomain `json:"domains" cbor:"2,keyasint"`
	Class   Ref                          `json:"class,omitempty" cbor:"3,keyasint,omitempty"`
	Name    Ref                          `json:"name" cbor:"4,keyasint"`
}

// LocationGroup is the wire form of definitions.LocationGroup.
type LocationGroup struct {
	GlobalID         uint32                        `json:"global_id" cbor:"1,keyasint"`
	Name             Ref                           `json:"name" cbor:"2,keyasint"`
	Type             definitions.LocationGroupType `json:"type" cbor:"3,keyasint"`
	SystemTreeParent Ref                           `json:"system_tree_parent,omitempty" cbor:"4,keyasint,omitempty"`
}

// Location is the wire form of definitions.Location.
type Location struct {
	GlobalID uint64                   `json:"global_id" cbor:"1,keyasint"`
	Name     Ref                      `json:"name" cbor:"2,keyasint"`
	Type     definitions.LocationType `json:"type" cbor:"3,keyasint"`
	Group    Ref                      `json:"group" cbor:"4,keyasint"`
}

// Region is the wire form of definitions.Region.
type Region struct {
	Name          Ref                    `json:"name" cbor:"1,keyasint"`
	CanonicalName Ref                    `json:"canonical_name" cbor:"2,keyasint"`
	Description   Ref                    `json:"description,omitempty" cbor:"3,keyasint,omitempty"`
	File          Ref                    `json:"file,omitempty" cbor:"4,keyasint,omitempty"`
	BeginLine     uint32                 `json:"begin_line" cbor:"5,keyasint"`
	EndLine       uint32                 `json:"end_line" cbor:"6,keyasint"`
	Type          definitions.RegionType `json:"type" cbor:"7,keyasint"`
	Paradigm      definitions.Paradigm   `json:"paradigm" cbor:"8,keyasint"`
	Flags         uint32                 `json:"flags,omitempty" cbor:"9,keyasint,omitempty"`
}

// Metric is the wire form of definitions.Metric.
type Metric struct {
	Name        Ref                         `json:"name" cbor:"1,keyasint"`
	Description Ref                         `json:"description,omitempty" cbor:"2,keyasint,omitempty"`
	Unit        Ref                         `json:"unit,omitempty" cbor:"3,keyasint,omitempty"`
	ValueType   definitions.MetricValueType `json:"value_type" cbor:"4,keyasint"`
	Mode        definitions.MetricMode      `json:"mode" cbor:"5,keyasint"`
}

// Parameter is the wire form of definitions.Parameter.
type Parameter struct {
	Name Ref                       `json:"name" cbor:"1,keyasint"`
	Type definitions.ParameterType `json:"type" cbor:"2,keyasint"`
}

// Property is the wire form of definitions.Property.
type Property struct {
	ID        definitions.PropertyID        `json:"id" cbor:"1,keyasint"`
	Condition definitions.PropertyCondition `json:"condition" cbor:"2,keyasint"`
	Value     bool                          `json:"value" cbor:"3,keyasint"`
}

// Callpath is the wire form of definitions.Callpath.
type Callpath struct {
	Parent Ref `json:"parent,omitempty" cbor:"1,keyasint,omitempty"`
	Region Ref `json:"region" cbor:"2,keyasint"`
}

// Batch holds all definitions of one rank. The i-th element of every slice
// has sequence number i.
type Batch struct {
	Rank            int              `json:"rank" cbor:"1,keyasint"`
	Strings         []string         `json:"strings,omitempty" cbor:"2,keyasint,omitempty"`
	SourceFiles     []SourceFile     `json:"source_files,omitempty" cbor:"3,keyasint,omitempty"`
	SystemTreeNodes []SystemTreeNode `json:"system_tree_nodes,omitempty" cbor:"4,keyasint,omitempty"`
	LocationGroups  []LocationGroup  `json:"location_groups,omitempty" cbor:"5,keyasint,omitempty"`
	Locations       []Location       `json:"locations,omitempty" cbor:"6,keyasint,omitempty"`
	Regions         []Region         `json:"regions,omitempty" cbor:"7,keyasint,omitempty"`
	Metrics         []Metric         `json:"metrics,omitempty" cbor:"8,keyasint,omitempty"`
	Parameters      []Parameter      `json:"parameters,omitempty" cbor:"9,keyasint,omitempty"`
	Properties      []Property       `json:"properties,omitempty" cbor:"10,keyasint,omitempty"`
	Callpaths       []Callpath       `json:"callpaths,omitempty" cbor:"11,keyasint,omitempty"`
}

// Len returns the number of definitions of kind k in the batch.
func (b *Batch) Len(k definitions.Kind) int {
	switch k {
	case definitions.KindString:
		return len(b.Strings)
	case definitions.KindSourceFile:
		return len(b.SourceFiles)
	case definitions.KindSystemTreeNode:
		return len(b.SystemTreeNodes)
	case definitions.KindLocationGroup:
		return len(b.LocationGroups)
	case definitions.KindLocation:
		return len(b.Locations)
	case definitions.KindRegion:
		return len(b.Regions)
	case definitions.KindMetric:
		return len(b.Metrics)
	case definitions.KindParameter:
		return len(b.Parameters)
	case definitions.KindProperty:
		return len(b.Properties)
	case definitions.KindCallpath:
		return len(b.Callpaths)
	default:
		return 0
	}
}

// Total returns the number of definitions in the batch.
func (b *Batch) Total() int {
	n := 0
	for _, k := range definitions.Kinds {
		n += b.Len(k)
	}
	return n
}

// exporter turns local handles into batch references.
type exporter struct {
	m *definitions.Manager
}

func (e exporter) ref(h definitions.Handle) (Ref, error) {
	if h == definitions.Invalid {
		return NoRef, nil
	}
	seq, err := e.m.SequenceNumber(h)
	if err != nil {
		return NoRef, err
	}
	return refOf(seq), nil
}

// refs converts several handles, stopping at the first error.
func (e exporter) refs(hs ...definitions.Handle) ([]Ref, error) {
	out := make([]Ref, len(hs))
	for i, h := range hs {
		r, err := e.ref(h)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// Export serializes the definitions of m into a batch for rank.
func Export(m *definitions.Manager, rank int) (*Batch, error) {
	e := exporter{m: m}
	b := &Batch{Rank: rank}

	for _, k := range definitions.Kinds {
		err := m.ForEach(k, func(h definitions.Handle) error {
			return e.export(b, k, h)
		})
		if err != nil {
			return nil, fmt.Errorf("unify: export %s: %w", k, err)
		}
	}
	return b, nil
}

func (e exporter) export(b *Batch, k definitions.Kind, h definitions.Handle) error {
	m := e.m
	switch k {
	case definitions.KindString:
		s, err := m.StringValue(h)
		if err != nil {
			return err
		}
		b.Strings = append(b.Strings, s)

	case definitions.KindSourceFile:
		sf, err := m.SourceFile(h)
		if err != nil {
			return err
		}
		name, err := e.ref(sf.Name)
		if err != nil {
			return err
		}
		b.SourceFiles = append(b.SourceFiles, SourceFile{Name: name})

	case definitions.KindSystemTreeNode:
		n, err := m.SystemTreeNode(h)
		if err != nil {
			return err
		}
		r, err := e.refs(n.Parent, n.Class, n.Name)
		if err != nil {
			return err
		}
		b.SystemTreeNodes = append(b.SystemTreeNodes, SystemTreeNode{
			Parent: r[0], Domains: n.Domains, Class: r[1], Name: r[2],
		})

	case definitions.KindLocationGroup:
		g, err := m.LocationGroup(h)
		if err != nil {
			return err
		}
		r, err := e.refs(g.Name, g.SystemTreeParent)
		if err != nil {
			return err
		}
		b.LocationGroups = append(b.LocationGroups, LocationGroup{
			GlobalID: g.GlobalID, Name: r[0], Type: g.Type, SystemTreeParent: r[1],
		})

	case definitions.KindLocation:
		l, err := m.Location(h)
		if err != nil {
			return err
		}
		r, err := e.refs(l.Name, l.Group)
		if err != nil {
			return err
		}
		b.Locations = append(b.Locations, Location{
			GlobalID: l.GlobalID, Name: r[0], Type: l.Type, Group: r[1],
		})

	case definitions.KindRegion:
		rg, err := m.Region(h)
		if err != nil {
			return err
		}
		r, err := e.refs(rg.Name, rg.CanonicalName, rg.Description, rg.File)
		if err != nil {
			return err
		}
		b.Regions = append(b.Regions, Region{
			Name:          r[0],
			CanonicalName: r[1],
			Description:   r[2],
			File:          r[3],
			BeginLine:     rg.BeginLine,
			EndLine:       rg.EndLine,
			Type:          rg.Type,
			Paradigm:      rg.Paradigm,
			Flags:         rg.Flags,
		})

	case definitions.KindMetric:
		mt, err := m.Metric(h)
		if err != nil {
			return err
		}
		r, err := e.refs(mt.Name, mt.Description, mt.Unit)
		if err != nil {
			return err
		}
		b.Metrics = append(b.Metrics, Metric{
			Name: r[0], Description: r[1], Unit: r[2], ValueType: mt.ValueType, Mode: mt.Mode,
		})

	case definitions.KindParameter:
		p, err := m.Parameter(h)
		if err != nil {
			return err
		}
		name, err := e.ref(p.Name)
		if err != nil {
			return err
		}
		b.Parameters = append(b.Parameters, Parameter{Name: name, Type: p.Type})

	case definitions.KindProperty:
		p, err := m.Property(h)
		if err != nil {
			return err
		}
		b.Properties = append(b.Properties, Property{ID: p.ID, Condition: p.Condition, Value: p.Value})

	case definitions.KindCallpath:
		cp, err := m.Callpath(h)
		if err != nil {
			return err
		}
		r, err := e.refs(cp.Parent, cp.Region)
		if err != nil {
			return err
		}
		b.Callpaths = append(b.Callpaths, Callpath{Parent: r[0], Region: r[1]})

	default:
		return fmt.Errorf("%w: %d", definitions.ErrUnknownKind, k)
	}
	return nil
}
