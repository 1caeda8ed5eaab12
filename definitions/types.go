package definitions

import "github.com/hupe1980/perfdefs/internal/arena"

// Handle references a definition within one manager.
type Handle = arena.Handle

// Invalid is the handle that references nothing.
const Invalid = arena.Invalid

// RegionType classifies a region.
type RegionType uint32

const (
	RegionUnknown RegionType = iota
	RegionFunction
	RegionLoop
	RegionUserRegion
	RegionCodeRegion
	RegionPhase
	RegionDynamic
	RegionBarrier
	RegionImplicitBarrier
	RegionPointToPoint
	RegionCollective
	RegionParallel
	RegionTask
	RegionWrapper
)

// Paradigm names the programming model that produced a region.
type Paradigm uint32

const (
	ParadigmMeasurement Paradigm = iota
	ParadigmUser
	ParadigmCompiler
	ParadigmSampling
	ParadigmMemory
	ParadigmMPI
	ParadigmSHMEM
	ParadigmOpenMP
	ParadigmPthread
	ParadigmCUDA
	ParadigmOpenCL
)

// ParameterType is the value type of a parameter.
type ParameterType uint32

const (
	ParameterString ParameterType = iota
	ParameterInt64
	ParameterUint64
)

// PropertyID names a measurement property.
type PropertyID uint32

const (
	PropertyMPICommunicationComplete PropertyID = iota + 1
	PropertyThreadForkJoinEventComplete
	PropertyThreadCreateWaitEventComplete
	PropertyThreadLockEventComplete
)

// PropertyCondition selects how values of the same property are combined.
type PropertyCondition uint32

const (
	// ConditionAll combines with logical AND.
	ConditionAll PropertyCondition = iota
	// ConditionAny combines with logical OR.
	ConditionAny
)

// Combine merges v into current according to c.
func (c PropertyCondition) Combine(current, v bool) bool {
	if c == ConditionAny {
		return current || v
	}
	return current && v
}

// SystemTreeDomain is a bit set of hardware domains a system-tree node spans.
type SystemTreeDomain uint32

const (
	DomainNone              SystemTreeDomain = 0
	DomainMachine           SystemTreeDomain = 1 << 0
	DomainSharedMemory      SystemTreeDomain = 1 << 1
	DomainNUMA              SystemTreeDomain = 1 << 2
	DomainSocket            SystemTreeDomain = 1 << 3
	DomainCache             SystemTreeDomain = 1 << 4
	DomainCore              SystemTreeDomain = 1 << 5
	DomainPU                SystemTreeDomain = 1 << 6
	DomainAcceleratorDevice SystemTreeDomain = 1 << 7
)

// LocationGroupType classifies a location group.
type LocationGroupType uint32

const (
	LocationGroupProcess LocationGroupType = iota
	LocationGroupAccelerator
)

// LocationType classifies a location.
type LocationType uint32

const (
	LocationCPUThread LocationType = iota
	LocationGPU
	LocationMetric
)

// MetricValueType is the value type of a metric.
type MetricValueType uint32

const (
	MetricInt64 MetricValueType = iota
	MetricUint64
	MetricDouble
)

// MetricMode describes how metric values relate over time.
type MetricMode uint32

const (
	MetricAccumulatedStart MetricMode = iota
	MetricAccumulatedPoint
	MetricAbsolutePoint
	MetricRelativePoint
)

// SourceFile attributes.
type SourceFile struct {
	Name Handle
}

// Region attributes.
type Region struct {
	Name          Handle
	CanonicalName Handle
	Description   Handle
	File          Handle
	BeginLine     uint32
	EndLine       uint32
	Type          RegionType
	Paradigm      Paradigm
	Flags         uint32
}

// Parameter attributes.
type Parameter struct {
	Name Handle
	Type ParameterType
}

// Property attributes.
type Property struct {
	ID        PropertyID
	Condition PropertyCondition
	Value     bool
}

// SystemTreeNode attributes. Parent is Invalid for a root.
type SystemTreeNode struct {
	Parent  Handle
	Domains SystemTreeDomain
	Class   Handle
	Name    Handle
}

// LocationGroup attributes. GlobalID is the rank of the process.
type LocationGroup struct {
	GlobalID         uint32
	Name             Handle
	Type             LocationGroupType
	SystemTreeParent Handle
}

// Location attributes.
type Location struct {
	GlobalID uint64
	Name     Handle
	Type     LocationType
	Group    Handle
}

// Metric attributes.
type Metric struct {
	Name        Handle
	Description Handle
	Unit        Handle
	ValueType   MetricValueType
	Mode        MetricMode
}

// Callpath attributes. Parent is Invalid for a root call path.
type Callpath struct {
	Parent Handle
	Region Handle
}
