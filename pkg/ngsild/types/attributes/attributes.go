// Package attributes implements the NGSI-LD attribute node: a Property,
// GeoProperty, TemporalProperty or Relationship together with its ordered
// children (reserved metadata, user data and nested attributes).
//
// Reserved metadata (unitCode, datasetId, observedAt) and nested attributes
// share one namespace per node and are indistinguishable in the wire
// format, where all of them appear as sibling keys. Only the typed
// accessors tell them apart.
package attributes

import (
	"fmt"
	"strings"
	"time"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/geojson"
	"github.com/diwise/ngsild-client/pkg/ngsild/iso8601"
	"github.com/diwise/ngsild-client/pkg/ngsild/urn"
)

type Kind int

const (
	KindProperty Kind = iota
	KindGeoProperty
	KindTemporalProperty
	KindRelationship
)

// WireType returns the type tag used in the serialized form. Temporal
// properties share the "Property" tag and are told apart by their
// @type/@value shaped value.
func (k Kind) WireType() string {
	switch k {
	case KindGeoProperty:
		return "GeoProperty"
	case KindRelationship:
		return "Relationship"
	default:
		return "Property"
	}
}

func (k Kind) String() string {
	switch k {
	case KindProperty:
		return "Property"
	case KindGeoProperty:
		return "GeoProperty"
	case KindTemporalProperty:
		return "TemporalProperty"
	case KindRelationship:
		return "Relationship"
	}
	return "Unknown"
}

// Reserved metadata names, surfaced through typed accessors.
const (
	MetaUnitCode   string = "unitCode"
	MetaDatasetID  string = "datasetId"
	MetaObservedAt string = "observedAt"
)

func IsReservedMetadata(name string) bool {
	return name == MetaUnitCode || name == MetaDatasetID || name == MetaObservedAt
}

// TemporalValue is the @type/@value pair that temporal properties carry.
type TemporalValue struct {
	Type  string `json:"@type"`
	Value string `json:"@value"`
}

// Attribute is a single attribute node. A multi attribute (such as a multi
// valued relationship) holds its instances instead of a value of its own.
type Attribute struct {
	kind      Kind
	value     any
	children  *Members
	instances []*Attribute
}

// auto is the sentinel type behind Auto.
type auto struct{}

// Auto may be passed to ObservedAt to reuse the timestamp cached on the
// enclosing entity, falling back to the current time if none is cached.
var Auto = auto{}

// Params collects the recognized attribute options. Options are applied by
// the constructors; the enclosing entity consumes Nested and resolves Auto
// observation timestamps beforehand.
type Params struct {
	Nested     bool
	UnitCode   *string
	DatasetID  *string
	ObservedAt any
	Userdata   map[string]any
	Escape     bool
}

type Option func(*Params)

func NewParams(opts ...Option) *Params {
	p := &Params{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// UnitCode attaches a unit code (UN/CEFACT common code) to a property.
func UnitCode(code string) Option {
	return func(p *Params) { p.UnitCode = &code }
}

// DatasetID attaches a dataset identifier, URN prefixed like an entity id.
func DatasetID(id string) Option {
	return func(p *Params) { p.DatasetID = &id }
}

// ObservedAt attaches an observation timestamp: a time.Time, an ISO 8601
// datetime string, or Auto.
func ObservedAt(value any) Option {
	return func(p *Params) { p.ObservedAt = value }
}

// Userdata merges arbitrary extra members into the attribute.
func Userdata(data map[string]any) Option {
	return func(p *Params) { p.Userdata = data }
}

// Nested nests the attribute under the most recently added node instead of
// the entity root.
func Nested() Option {
	return func(p *Params) { p.Nested = true }
}

// Escaped percent encodes string values before they are stored.
func Escaped() Option {
	return func(p *Params) { p.Escape = true }
}

// NewProperty builds a Property node from any JSON compatible value.
func NewProperty(value any, p *Params) (*Attribute, error) {
	if p.Escape {
		if s, ok := value.(string); ok {
			value = escape(s)
		}
	}

	a := &Attribute{kind: KindProperty, value: value, children: NewMembers()}

	err := a.applyMetadata(p, true)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// NewGeoProperty builds a GeoProperty node from a geojson.Geometry or a
// raw (lat, lon) pair.
func NewGeoProperty(value any, p *Params) (*Attribute, error) {
	if p.UnitCode != nil {
		return nil, errors.NewInvalidAttributeOptionError("unit codes are not applicable to geo properties")
	}

	geometry, err := geojson.Normalize(value)
	if err != nil {
		return nil, err
	}

	a := &Attribute{kind: KindGeoProperty, value: geometry, children: NewMembers()}

	err = a.applyMetadata(p, false)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// NewTemporalProperty builds a temporal property from a time.Time or an
// ISO 8601 datetime, date or time string.
func NewTemporalProperty(value any, p *Params) (*Attribute, error) {
	if p.UnitCode != nil {
		return nil, errors.NewInvalidAttributeOptionError("unit codes are not applicable to temporal properties")
	}

	formatted, temporalType, _, err := iso8601.Parse(value)
	if err != nil {
		return nil, err
	}

	a := &Attribute{
		kind:     KindTemporalProperty,
		value:    TemporalValue{Type: string(temporalType), Value: formatted},
		children: NewMembers(),
	}

	err = a.applyMetadata(p, false)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// NewRelationship builds a Relationship node towards a single target or,
// given a list of targets, a multi attribute with one instance per target.
// Targets are URN prefixed when needed.
func NewRelationship(object any, p *Params) (*Attribute, error) {
	if p.UnitCode != nil {
		return nil, errors.NewInvalidAttributeOptionError("unit codes are not applicable to relationships")
	}

	switch target := object.(type) {
	case string:
		a := &Attribute{kind: KindRelationship, value: urn.Add(target), children: NewMembers()}

		err := a.applyMetadata(p, false)
		if err != nil {
			return nil, err
		}

		return a, nil
	case []string:
		if len(target) == 0 {
			return nil, errors.NewInvalidAttributeOptionError("a multi relationship needs at least one target")
		}

		multi := &Attribute{kind: KindRelationship}
		for _, t := range target {
			instance, err := NewRelationship(t, p)
			if err != nil {
				return nil, err
			}
			multi.instances = append(multi.instances, instance)
		}

		return multi, nil
	}

	return nil, errors.NewInvalidAttributeOptionError(fmt.Sprintf("cannot use %T as a relationship target", object))
}

func (a *Attribute) applyMetadata(p *Params, allowUnitCode bool) error {
	if p.UnitCode != nil {
		if !allowUnitCode {
			return errors.NewInvalidAttributeOptionError("unit code is not applicable here")
		}
		a.children.Set(MetaUnitCode, *p.UnitCode)
	}

	if p.ObservedAt != nil {
		if _, isAuto := p.ObservedAt.(auto); isAuto {
			return errors.NewInvalidTemporalValueError("auto timestamps can only be resolved by an enclosing entity")
		}

		formatted, _, err := iso8601.ParseDateTime(p.ObservedAt)
		if err != nil {
			return err
		}
		a.children.Set(MetaObservedAt, formatted)
	}

	if p.DatasetID != nil {
		a.children.Set(MetaDatasetID, urn.Add(*p.DatasetID))
	}

	for name, value := range p.Userdata {
		a.children.Set(name, value)
	}

	return nil
}

func (a *Attribute) Kind() Kind {
	return a.kind
}

// Type returns the wire format type tag of this node.
func (a *Attribute) Type() string {
	return a.kind.WireType()
}

// IsMulti reports whether this node is a multi attribute.
func (a *Attribute) IsMulti() bool {
	return a.instances != nil
}

// Instances returns the instances of a multi attribute, nil otherwise.
func (a *Attribute) Instances() []*Attribute {
	return a.instances
}

// Value returns the node's value: the bare value for properties, the
// datetime/date/time string for temporal properties and the target(s) for
// relationships.
func (a *Attribute) Value() any {
	if tv, ok := a.value.(TemporalValue); ok {
		return tv.Value
	}
	return a.value
}

// SetValue replaces the node's value, normalizing it according to the
// node's kind.
func (a *Attribute) SetValue(value any) error {
	if a.IsMulti() {
		return errors.NewTypeMismatchError("a multi attribute has no value of its own")
	}

	switch a.kind {
	case KindGeoProperty:
		geometry, err := geojson.Normalize(value)
		if err != nil {
			return err
		}
		a.value = geometry
	case KindTemporalProperty:
		formatted, temporalType, _, err := iso8601.Parse(value)
		if err != nil {
			return err
		}
		a.value = TemporalValue{Type: string(temporalType), Value: formatted}
	case KindRelationship:
		target, ok := value.(string)
		if !ok {
			return errors.NewTypeMismatchError(fmt.Sprintf("cannot use %T as a relationship target", value))
		}
		a.value = urn.Add(target)
	default:
		a.value = value
	}

	return nil
}

// UnitCode returns the unit code metadata, or an empty string.
func (a *Attribute) UnitCode() string {
	return a.stringMember(MetaUnitCode)
}

func (a *Attribute) SetUnitCode(code string) {
	a.children.Set(MetaUnitCode, code)
}

// ObservedAt returns the observation timestamp metadata, or an empty string.
func (a *Attribute) ObservedAt() string {
	return a.stringMember(MetaObservedAt)
}

func (a *Attribute) SetObservedAt(t time.Time) {
	a.children.Set(MetaObservedAt, iso8601.FromDateTime(t))
}

// DatasetID returns the dataset id metadata, or an empty string.
func (a *Attribute) DatasetID() string {
	return a.stringMember(MetaDatasetID)
}

func (a *Attribute) SetDatasetID(id string) {
	a.children.Set(MetaDatasetID, urn.Add(id))
}

func (a *Attribute) stringMember(name string) string {
	if a.children == nil {
		return ""
	}

	if v, ok := a.children.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}

/// Member returns a named child: a nested *Attribute or a raw value.
func (a *Attribute) Member(name string) (any, bool) {
	if a.children == nil {
		return nil, false
	}
	return a.children.Get(name)
}

// SetMember stores a named child, preserving its position if present.
func (a *Attribute) SetMember(name string, contents any) {
	if a.children == nil {
		a.children = NewMembers()
	}
	a.children.Set(name, contents)
}

// RemoveMember deletes a named child, reporting whether it existed.
func (a *Attribute) RemoveMember(name string) bool {
	if a.children == nil {
		return false
	}
	return a.children.Delete(name)
}

// ForEachMember visits all children in insertion order.
func (a *Attribute) ForEachMember(callback func(name string, contents any)) {
	if a.children == nil {
		return
	}
	a.children.Each(callback)
}

const unreserved string = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~/"

// escape percent encodes everything but unreserved characters and slashes,
// making string values safe for brokers that reject reserved characters.
func escape(value string) string {
	var sb strings.Builder

	for i := 0; i < len(value); i++ {
		c := value[i]
		if strings.IndexByte(unreserved, c) >= 0 {
			sb.WriteByte(c)
		} else {
			sb.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}

	return sb.String()
}
