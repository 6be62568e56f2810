package viewstate

import "context"

// Capability classifies a control independently of its concrete type.
type Capability int

const (
	CapabilityUnknown Capability = iota
	CapabilityVariantManagement
	CapabilityFilterBar
	CapabilityTable
	CapabilityChart
	CapabilityNestedView
	CapabilityLayout
	CapabilitySingleChoice
)

func (c Capability) String() string {
	switch c {
	case CapabilityVariantManagement:
		return "variant-management"
	case CapabilityFilterBar:
		return "filter-bar"
	case CapabilityTable:
		return "table"
	case CapabilityChart:
		return "chart"
	case CapabilityNestedView:
		return "nested-view"
	case CapabilityLayout:
		return "layout"
	case CapabilitySingleChoice:
		return "single-choice"
	default:
		return "unknown"
	}
}

// ParseCapability converts a string representation into a Capability.
// Unrecognised values return CapabilityUnknown.
func ParseCapability(value string) Capability {
	for _, c := range capabilityPriority {
		if c.String() == value {
			return c
		}
	}
	return CapabilityUnknown
}

// capabilityPriority is the order in which built-in capabilities are tested.
// The first one a control satisfies provides its internal handler.
var capabilityPriority = []Capability{
	CapabilityVariantManagement,
	CapabilityFilterBar,
	CapabilityTable,
	CapabilityChart,
	CapabilityNestedView,
	CapabilityLayout,
	CapabilitySingleChoice,
}

// Matches reports whether control satisfies the capability.
func (c Capability) Matches(control Control) bool {
	if control == nil {
		return false
	}
	switch c {
	case CapabilityVariantManagement:
		_, ok := control.(VariantManager)
		return ok
	case CapabilityFilterBar:
		return deltaKindOf(control) == DeltaKindFilterBar
	case CapabilityTable:
		return deltaKindOf(control) == DeltaKindTable
	case CapabilityChart:
		return deltaKindOf(control) == DeltaKindChart
	case CapabilityNestedView:
		_, ok := control.(NestedView)
		return ok
	case CapabilityLayout:
		if _, ok := control.(SectionSelector); ok {
			return true
		}
		_, ok := control.(HeaderToggler)
		return ok
	case CapabilitySingleChoice:
		_, ok := control.(SingleChoice)
		return ok
	default:
		return false
	}
}

// CapabilityOf returns the first built-in capability control satisfies.
func CapabilityOf(control Control) Capability {
	for _, c := range capabilityPriority {
		if c.Matches(control) {
			return c
		}
	}
	return CapabilityUnknown
}

// VariantManager manages named, user-savable configurations for the controls
// it is associated with.
type VariantManager interface {
	Control
	CurrentVariantKey() string
	StandardVariantKey() string
	VariantKeys() []string
	// AssociatedControlIDs lists the IDs of the controls governed by the
	// variant management.
	AssociatedControlIDs() []string
	ActivateVariant(ctx context.Context, key string) error
	// OnSave and OnSelect register listeners fired synchronously by the
	// control's own event dispatch.
	OnSave(listener func())
	OnSelect(listener func())
}

// DeltaKind tags delta-capable controls.
type DeltaKind int

const (
	DeltaKindNone DeltaKind = iota
	DeltaKindFilterBar
	DeltaKindTable
	DeltaKindChart
)

// DeltaCapable controls expose their state through a StateUtil and may
// participate in baseline/diff computation.
type DeltaCapable interface {
	Control
	DeltaKind() DeltaKind
}

func deltaKindOf(control Control) DeltaKind {
	if dc, ok := control.(DeltaCapable); ok {
		return dc.DeltaKind()
	}
	return DeltaKindNone
}

// IsDeltaCapable reports whether control takes part in delta computation.
func IsDeltaCapable(control Control) bool {
	return deltaKindOf(control) != DeltaKindNone
}

// BindingRefresher is implemented by tables and charts able to refresh their
// data binding.
type BindingRefresher interface {
	RefreshBinding(ctx context.Context) error
}

// SingleChoice covers tab strips, segmented buttons and dropdown-like selectors.
type SingleChoice interface {
	Control
	SelectedKey() string
	SetSelectedKey(key string)
}

// SectionSelector is a layout panel with a selectable section.
type SectionSelector interface {
	Control
	SelectedSection() string
	SetSelectedSection(section string)
}

// HeaderToggler is a layout panel with an expandable header.
type HeaderToggler interface {
	Control
	HeaderExpanded() bool
	SetHeaderExpanded(expanded bool)
}

// NestedView hosts a sub-screen with its own view state.
type NestedView interface {
	Control
	NestedViewState() ViewState
}

// Describer lets a control contribute metadata to rule evaluation.
type Describer interface {
	Describe() map[string]any
}
