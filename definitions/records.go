package definitions

import (
	"unsafe"
)

// header is the common prefix of every record.
type header struct {
	next     Handle
	unified  Handle
	hashNext Handle
	seq      uint32
	hash     uint64
	kind     Kind
	_        uint32
}

type stringRecord struct {
	header
	length uint32
	_      uint32
	// followed by length bytes
}

type sourceFileRecord struct {
	header
	name Handle
	_    uint32
}

type regionRecord struct {
	header
	name          Handle
	canonicalName Handle
	description   Handle
	file          Handle
	beginLine     uint32
	endLine       uint32
	regionType    RegionType
	paradigm      Paradigm
	flags         uint32
	_             uint32
}

type parameterRecord struct {
	header
	name          Handle
	parameterType ParameterType
}

type propertyRecord struct {
	header
	id        PropertyID
	condition PropertyCondition
	value     uint32
	_         uint32
}

type systemTreeNodeRecord struct {
	header
	parent  Handle
	domains SystemTreeDomain
	class   Handle
	name    Handle
}

type locationGroupRecord struct {
	header
	globalID         uint32
	name             Handle
	groupType        LocationGroupType
	systemTreeParent Handle
}

type locationRecord struct {
	header
	globalID     uint64
	name         Handle
	locationType LocationType
	group        Handle
	_            uint32
}

type metricRecord struct {
	header
	name        Handle
	description Handle
	unit        Handle
	valueType   MetricValueType
	mode        MetricMode
	_           uint32
}

type callpathRecord struct {
	header
	parent Handle
	region Handle
}

// record is the set of record layouts.
type record interface {
	stringRecord | sourceFileRecord | regionRecord | parameterRecord | propertyRecord |
		systemTreeNodeRecord | locationGroupRecord | locationRecord | metricRecord | callpathRecord
}

var (
	sizeOfHeader     = unsafe.Sizeof(header{})
	stringHeaderSize = int(unsafe.Sizeof(stringRecord{}))
)

func sizeOf[T record]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// recordSize is the fixed size of a record per kind.
var recordSize = [numKinds]int{
	KindString:         sizeOf[stringRecord](),
	KindSourceFile:     sizeOf[sourceFileRecord](),
	KindRegion:         sizeOf[regionRecord](),
	KindParameter:      sizeOf[parameterRecord](),
	KindProperty:       sizeOf[propertyRecord](),
	KindSystemTreeNode: sizeOf[systemTreeNodeRecord](),
	KindLocationGroup:  sizeOf[locationGroupRecord](),
	KindLocation:       sizeOf[locationRecord](),
	KindMetric:         sizeOf[metricRecord](),
	KindCallpath:       sizeOf[callpathRecord](),
}

// fits reports whether b is large enough for the record it starts with.
func fits(b []byte) bool {
	if len(b) < int(sizeOfHeader) {
		return false
	}
	k := headerOf(b).kind
	if !k.Valid() || len(b) < recordSize[k] {
		return false
	}
	if k == KindString {
		return len(b)-stringHeaderSize >= int(view[stringRecord](b).length)
	}
	return true
}

// view reinterprets the start of b as a record. b must be at least sizeOf[T]()
// bytes and 8-byte aligned, which arena allocations are.
func view[T record](b []byte) *T {
	return (*T)(unsafe.Pointer(&b[0])) //nolint:gosec // arena memory holds pointer-free records
}

func headerOf(b []byte) *header {
	return (*header)(unsafe.Pointer(&b[0])) //nolint:gosec // every record starts with a header
}

func hdr[T record](r *T) *header {
	return (*header)(unsafe.Pointer(r)) //nolint:gosec // every record starts with a header
}

// bytes returns the inline payload of a string record.
func (r *stringRecord) bytes() []byte {
	p := unsafe.Add(unsafe.Pointer(r), stringHeaderSize) //nolint:gosec // payload follows the record
	return unsafe.Slice((*byte)(p), r.length)
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
