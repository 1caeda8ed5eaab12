package unify

import (
	"fmt"

	"github.com/hupe1980/perfdefs/definitions"
)

// merger resolves the references of one batch against the entries already
// recorded for it.
type merger struct {
	unified *definitions.Manager
	batch   *Batch
	table   *RemapTable

	kind definitions.Kind
	seq  uint32
}

// resolve translates ref (a definition of kind refKind in the batch) into a
// unified handle. Absent references resolve to Invalid.
func (mg *merger) resolve(refKind definitions.Kind, ref Ref) (definitions.Handle, error) {
	seq, ok := ref.Seq()
	if !ok {
		return definitions.Invalid, nil
	}
	h, ok := mg.table.Unified(refKind, seq)
	if !ok {
		return definitions.Invalid, &MissingDependencyError{
			Rank:     mg.batch.Rank,
			Kind:     mg.kind,
			Sequence: mg.seq,
			RefKind:  refKind,
			Ref:      seq,
		}
	}
	return h, nil
}

// link is a reference together with the kind it points to.
type link struct {
	kind definitions.Kind
	ref  Ref
}

func (mg *merger) resolveAll(links ...link) ([]definitions.Handle, error) {
	out := make([]definitions.Handle, len(links))
	for i, l := range links {
		h, err := mg.resolve(l.kind, l.ref)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}

// record appends the unified handle for the current definition.
func (mg *merger) record(h definitions.Handle) error {
	gid, err := mg.unified.SequenceNumber(h)
	if err != nil {
		return err
	}
	mg.table.Entries[mg.kind] = append(mg.table.Entries[mg.kind], Entry{Unified: h, GlobalID: gid})
	return nil
}

// Merge defines every definition of b in unified, kind by kind in dependency
// order and within a kind in sequence order, and returns the remap table of
// b's rank. A reference to a definition that is not yet unified yields a
// *MissingDependencyError.
func Merge(unified *definitions.Manager, b *Batch) (*RemapTable, error) {
	mg := &merger{unified: unified, batch: b, table: newRemapTable(b.Rank)}

	for _, k := range definitions.Kinds {
		mg.kind = k
		n := b.Len(k)
		for i := 0; i < n; i++ {
			mg.seq = uint32(i) //nolint:gosec // i < len of a slice indexed by uint32 sequence numbers
			h, err := mg.define(k, i)
			if err != nil {
				return nil, err
			}
			if err := mg.record(h); err != nil {
				return nil, err
			}
		}
	}
	return mg.table, nil
}

func (mg *merger) define(k definitions.Kind, i int) (definitions.Handle, error) {
	u := mg.unified
	b := mg.batch

	switch k {
	case definitions.KindString:
		return u.DefineString(b.Strings[i])

	case definitions.KindSourceFile:
		name, err := mg.resolve(definitions.KindString, b.SourceFiles[i].Name)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineSourceFile(definitions.SourceFile{Name: name})

	case definitions.KindSystemTreeNode:
		n := b.SystemTreeNodes[i]
		r, err := mg.resolveAll(
			link{definitions.KindSystemTreeNode, n.Parent},
			link{definitions.KindString, n.Class},
			link{definitions.KindString, n.Name},
		)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineSystemTreeNode(definitions.SystemTreeNode{
			Parent: r[0], Domains: n.Domains, Class: r[1], Name: r[2],
		})

	case definitions.KindLocationGroup:
		g := b.LocationGroups[i]
		r, err := mg.resolveAll(
			link{definitions.KindString, g.Name},
			link{definitions.KindSystemTreeNode, g.SystemTreeParent},
		)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineLocationGroup(definitions.LocationGroup{
			GlobalID: g.GlobalID, Name: r[0], Type: g.Type, SystemTreeParent: r[1],
		})

	case definitions.KindLocation:
		l := b.Locations[i]
		r, err := mg.resolveAll(
			link{definitions.KindString, l.Name},
			link{definitions.KindLocationGroup, l.Group},
		)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineLocation(definitions.Location{
			GlobalID: l.GlobalID, Name: r[0], Type: l.Type, Group: r[1],
		})

	case definitions.KindRegion:
		rg := b.Regions[i]
		r, err := mg.resolveAll(
			link{definitions.KindString, rg.Name},
			link{definitions.KindString, rg.CanonicalName},
			link{definitions.KindString, rg.Description},
			link{definitions.KindSourceFile, rg.File},
		)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineRegion(definitions.Region{
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
		mt := b.Metrics[i]
		r, err := mg.resolveAll(
			link{definitions.KindString, mt.Name},
			link{definitions.KindString, mt.Description},
			link{definitions.KindString, mt.Unit},
		)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineMetric(definitions.Metric{
			Name: r[0], Description: r[1], Unit: r[2], ValueType: mt.ValueType, Mode: mt.Mode,
		})

	case definitions.KindParameter:
		p := b.Parameters[i]
		name, err := mg.resolve(definitions.KindString, p.Name)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineParameter(definitions.Parameter{Name: name, Type: p.Type})

	case definitions.KindProperty:
		p := b.Properties[i]
		return u.DefineProperty(definitions.Property{ID: p.ID, Condition: p.Condition, Value: p.Value})

	case definitions.KindCallpath:
		cp := b.Callpaths[i]
		r, err := mg.resolveAll(
			link{definitions.KindCallpath, cp.Parent},
			link{definitions.KindRegion, cp.Region},
		)
		if err != nil {
			return definitions.Invalid, err
		}
		return u.DefineCallpath(definitions.Callpath{Parent: r[0], Region: r[1]})

	default:
		return definitions.Invalid, fmt.Errorf("%w: %d", definitions.ErrUnknownKind, k)
	}
}
