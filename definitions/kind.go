package definitions

import "fmt"

// Kind identifies a definition kind.
type Kind uint32

const (
	KindString Kind = iota + 1
	KindSourceFile
	KindSystemTreeNode
	KindLocationGroup
	KindLocation
	KindRegion
	KindMetric
	KindParameter
	KindProperty
	KindCallpath

	numKinds = int(KindCallpath) + 1
)

// Kinds lists all kinds in dependency order: a kind only refers to kinds listed
// before it, or to earlier records of its own kind.
var Kinds = []Kind{
	KindString,
	KindSourceFile,
	KindSystemTreeNode,
	KindLocationGroup,
	KindLocation,
	KindRegion,
	KindMetric,
	KindParameter,
	KindProperty,
	KindCallpath,
}

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindSourceFile:
		return "source_file"
	case KindSystemTreeNode:
		return "system_tree_node"
	case KindLocationGroup:
		return "location_group"
	case KindLocation:
		return "location"
	case KindRegion:
		return "region"
	case KindMetric:
		return "metric"
	case KindParameter:
		return "parameter"
	case KindProperty:
		return "property"
	case KindCallpath:
		return "callpath"
	default:
		return fmt.Sprintf("Kind(%d)", uint32(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k >= KindString && k <= KindCallpath
}

// hashTableBits sizes the per-kind bucket arrays.
func (k Kind) hashTableBits() uint {
	switch k {
	case KindString:
		return 12
	case KindRegion, KindCallpath:
		return 10
	default:
		return 8
	}
}
