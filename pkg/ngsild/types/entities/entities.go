// Package entities implements the NGSI-LD entity document: an ordered set
// of members where @context, id and type are mandatory and everything else
// is an attribute node. Documents can be built top down with the Add
// methods or the fluent Prop/GProp/TProp/Rel chain, and parsed back from
// their serialized form without losing member order.
package entities

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/geojson"
	"github.com/diwise/ngsild-client/pkg/ngsild/iso8601"
	"github.com/diwise/ngsild-client/pkg/ngsild/types"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/attributes"
	"github.com/diwise/ngsild-client/pkg/ngsild/urn"
)

const (
	DefaultContextURL string = "https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld"
	LinkHeader        string = "<" + DefaultContextURL + ">; rel=\"http://www.w3.org/ns/json-ld#context\"; type=\"application/ld+json\""

	DefaultNGSITenant string = ""

	contextMember string = "@context"
	idMember      string = "id"
	typeMember    string = "type"
)

// EntityImpl is the concrete entity document. The anchor and cursor track
// where the next added attribute attaches: at the root by default, under
// the anchored node after Anchor, or under the most recently added node
// when the Nested option is given.
type EntityImpl struct {
	members *attributes.Members

	cursor *attributes.Attribute
	anchor *attributes.Attribute

	cachedAt *time.Time
	err      error
}

type EntityDecoratorFunc func(e *EntityImpl)

// New creates an entity of the given type. A bare local id is fully
// qualified into urn:ngsi-ld:<Type>:<id> form, and an ISO 8601 datetime
// embedded in the id seeds the cached timestamp used by Auto.
func New(entityID string, entityType string, decorators ...EntityDecoratorFunc) (*EntityImpl, error) {
	if entityType == "" {
		return nil, errors.NewMissingMandatoryFieldError(typeMember)
	}

	e := &EntityImpl{members: attributes.NewMembers()}
	e.members.Set(contextMember, []string{DefaultContextURL})
	e.members.Set(idMember, urn.FullyQualified(entityType, entityID))
	e.members.Set(typeMember, entityType)

	if t, ok := iso8601.Extract(e.ID()); ok {
		e.cachedAt = &t
	}

	for _, decorate := range decorators {
		decorate(e)
	}

	return e, e.err
}

// NewFromID creates an entity from a fully qualified id alone, inferring
// the entity type from the urn.
func NewFromID(entityID string, decorators ...EntityDecoratorFunc) (*EntityImpl, error) {
	entityType, ok := urn.InferType(entityID)
	if !ok {
		return nil, errors.NewMissingMandatoryFieldError(typeMember)
	}

	return New(entityID, entityType, decorators...)
}

// NewFragment creates an entity fragment, carrying attributes but no id
// or type, for use in partial updates.
func NewFragment(decorators ...EntityDecoratorFunc) (types.EntityFragment, error) {
	e := &EntityImpl{members: attributes.NewMembers()}
	e.members.Set(contextMember, []string{DefaultContextURL})

	for _, decorate := range decorators {
		decorate(e)
	}

	return e, e.err
}

// NewFromJSON parses a serialized entity, preserving member order.
// A missing @context, id or type is an ErrMissingMandatoryField.
func NewFromJSON(body []byte) (*EntityImpl, error) {
	rawMembers, err := attributes.DecodeObject(body)
	if err != nil {
		return nil, errors.NewBadRequestDataError(err.Error())
	}

	e := &EntityImpl{members: attributes.NewMembers()}

	for _, m := range rawMembers {
		switch m.Name {
		case idMember, typeMember:
			value := ""
			if err := json.Unmarshal(m.Raw, &value); err != nil {
				return nil, errors.NewBadRequestDataError(err.Error())
			}
			e.members.Set(m.Name, value)
		case contextMember:
			contexts, err := unmarshalContext(m.Raw)
			if err != nil {
				return nil, err
			}
			e.members.Set(contextMember, contexts)
		default:
			contents, err := attributes.DecodeMember(m.Raw)
			if err != nil {
				return nil, err
			}
			e.members.Set(m.Name, contents)
		}
	}

	for _, mandatory := range []string{contextMember, idMember, typeMember} {
		if _, ok := e.members.Get(mandatory); !ok {
			return nil, errors.NewMissingMandatoryFieldError(mandatory)
		}
	}

	if t, ok := iso8601.Extract(e.ID()); ok {
		e.cachedAt = &t
	}

	return e, nil
}

// NewFromSlice parses a serialized entity array.
func NewFromSlice(body []byte) ([]types.Entity, error) {
	bodies := []json.RawMessage{}

	if err := json.Unmarshal(body, &bodies); err != nil {
		return nil, errors.NewBadRequestDataError(err.Error())
	}

	result := make([]types.Entity, 0, len(bodies))

	for _, b := range bodies {
		e, err := NewFromJSON(b)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	return result, nil
}

func unmarshalContext(raw json.RawMessage) ([]string, error) {
	single := ""
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}

	contexts := []string{}
	if err := json.Unmarshal(raw, &contexts); err != nil {
		return nil, errors.NewBadRequestDataError("@context must be a string or an array of strings")
	}

	return contexts, nil
}

// Context replaces the entity's @context list.
func Context(contexts []string) EntityDecoratorFunc {
	return func(e *EntityImpl) {
		deduped := make([]string, 0, len(contexts))
		for _, ctx := range contexts {
			if !contains(deduped, ctx) {
				deduped = append(deduped, ctx)
			}
		}
		e.members.Set(contextMember, deduped)
	}
}

// DefaultContext sets the core context alone.
func DefaultContext() EntityDecoratorFunc {
	return Context([]string{DefaultContextURL})
}

func (e *EntityImpl) ID() string {
	return e.stringMember(idMember)
}

func (e *EntityImpl) Type() string {
	return e.stringMember(typeMember)
}

// SetID replaces the entity id, URN prefixing it when needed. The cached
// timestamp is refreshed from the new id when one is embedded.
func (e *EntityImpl) SetID(entityID string) {
	e.members.Set(idMember, urn.Add(entityID))

	if t, ok := iso8601.Extract(e.ID()); ok {
		e.cachedAt = &t
	}
}

func (e *EntityImpl) Context() []string {
	if v, ok := e.members.Get(contextMember); ok {
		if contexts, ok := v.([]string); ok {
			return contexts
		}
	}
	return nil
}

// AddContext appends a context url unless it is already present.
func (e *EntityImpl) AddContext(ctx string) {
	contexts := e.Context()
	if contains(contexts, ctx) {
		return
	}
	e.members.Set(contextMember, append(contexts, ctx))
}

func (e *EntityImpl) stringMember(name string) string {
	if v, ok := e.members.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AddProperty adds a Property attribute.
func (e *EntityImpl) AddProperty(name string, value any, opts ...attributes.Option) error {
	p := e.newParams(opts...)

	a, err := attributes.NewProperty(value, p)
	if err != nil {
		return err
	}

	return e.attach(name, a, p.Nested)
}

// AddGeoProperty adds a GeoProperty attribute.
func (e *EntityImpl) AddGeoProperty(name string, value any, opts ...attributes.Option) error {
	p := e.newParams(opts...)

	a, err := attributes.NewGeoProperty(value, p)
	if err != nil {
		return err
	}

	return e.attach(name, a, p.Nested)
}

// AddTemporalProperty adds a temporal property. Passing Auto as the value
// reuses the entity's cached timestamp, and the first concrete datetime
// written seeds the cache when the id carried none.
func (e *EntityImpl) AddTemporalProperty(name string, value any, opts ...attributes.Option) error {
	p := e.newParams(opts...)

	if value == attributes.Auto {
		value = e.autoTimestamp()
	}

	a, err := attributes.NewTemporalProperty(value, p)
	if err != nil {
		return err
	}

	if e.cachedAt == nil {
		if _, temporalType, t, err := iso8601.Parse(value); err == nil && temporalType == iso8601.TypeDateTime {
			e.cachedAt = &t
		}
	}

	return e.attach(name, a, p.Nested)
}

// AddRelationship adds a Relationship attribute. A slice of targets
// produces a multi attribute with one instance per target.
func (e *EntityImpl) AddRelationship(name string, object any, opts ...attributes.Option) error {
	p := e.newParams(opts...)

	a, err := attributes.NewRelationship(object, p)
	if err != nil {
		return err
	}

	return e.attach(name, a, p.Nested)
}

// newParams applies the options and resolves Auto observation timestamps
// against the cached timestamp, which only the entity knows about.
func (e *EntityImpl) newParams(opts ...attributes.Option) *attributes.Params {
	p := attributes.NewParams(opts...)

	if p.ObservedAt == attributes.Auto {
		p.ObservedAt = e.autoTimestamp()
	}

	return p
}

func (e *EntityImpl) autoTimestamp() time.Time {
	if e.cachedAt == nil {
		now := time.Now().UTC()
		e.cachedAt = &now
	}
	return *e.cachedAt
}

// attach places a new node in the document. Chained nesting wins over the
// anchor, the anchor wins over the root, and the cursor always moves to
// the new node.
func (e *EntityImpl) attach(name string, a *attributes.Attribute, nested bool) error {
	parent := (*attributes.Attribute)(nil)

	if nested && e.cursor != nil {
		parent = e.cursor
	} else if e.anchor != nil {
		parent = e.anchor
	}

	if parent != nil {
		if parent.IsMulti() {
			return errors.NewInvalidAttributeOptionError("cannot nest attributes under a multi attribute")
		}
		parent.SetMember(name, a)
	} else {
		e.members.Set(name, a)
	}

	e.cursor = a
	return nil
}

// Anchor pins subsequent additions under the most recently added node,
// until Unanchor is called or a node is added with chained nesting.
func (e *EntityImpl) Anchor() *EntityImpl {
	if e.cursor == nil {
		e.fail(errors.NewInvalidAttributeOptionError("cannot anchor an empty entity"))
		return e
	}

	e.anchor = e.cursor
	return e
}

// Unanchor returns subsequent additions to the entity root.
func (e *EntityImpl) Unanchor() *EntityImpl {
	e.anchor = nil
	return e
}

// Prop adds a Property, keeping the first error for Err.
func (e *EntityImpl) Prop(name string, value any, opts ...attributes.Option) *EntityImpl {
	e.fail(e.AddProperty(name, value, opts...))
	return e
}

// GProp adds a GeoProperty, keeping the first error for Err.
func (e *EntityImpl) GProp(name string, value any, opts ...attributes.Option) *EntityImpl {
	e.fail(e.AddGeoProperty(name, value, opts...))
	return e
}

// TProp adds a temporal property, keeping the first error for Err.
func (e *EntityImpl) TProp(name string, value any, opts ...attributes.Option) *EntityImpl {
	e.fail(e.AddTemporalProperty(name, value, opts...))
	return e
}

// Rel adds a Relationship, keeping the first error for Err.
func (e *EntityImpl) Rel(name string, object any, opts ...attributes.Option) *EntityImpl {
	e.fail(e.AddRelationship(name, object, opts...))
	return e
}

// Loc adds a location GeoProperty from WGS84 coordinates.
func (e *EntityImpl) Loc(latitude, longitude float64) *EntityImpl {
	return e.GProp("location", geojson.NewPoint(latitude, longitude))
}

// Obs adds a dateObserved temporal property.
func (e *EntityImpl) Obs(value any) *EntityImpl {
	return e.TProp("dateObserved", value)
}

// Err returns the first error recorded by the fluent chain, if any.
func (e *EntityImpl) Err() error {
	return e.err
}

func (e *EntityImpl) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// Attribute returns the named root level attribute.
func (e *EntityImpl) Attribute(name string) (*attributes.Attribute, bool) {
	if v, ok := e.members.Get(name); ok {
		if a, ok := v.(*attributes.Attribute); ok {
			return a, true
		}
	}
	return nil, false
}

// RemoveAttribute deletes a root level member, reporting whether it
// existed. The mandatory @context, id and type members cannot be removed.
func (e *EntityImpl) RemoveAttribute(name string) bool {
	if name == contextMember || name == idMember || name == typeMember {
		return false
	}
	return e.members.Delete(name)
}

// RemoveSystemAttributes strips broker generated createdAt and modifiedAt
// members from the entity and from all of its attributes.
func (e *EntityImpl) RemoveSystemAttributes() {
	e.members.Delete("createdAt")
	e.members.Delete("modifiedAt")

	e.members.Each(func(name string, contents any) {
		if a, ok := contents.(*attributes.Attribute); ok {
			removeSystemMembers(a)
		}
	})
}

func removeSystemMembers(a *attributes.Attribute) {
	for _, instance := range a.Instances() {
		removeSystemMembers(instance)
	}

	a.RemoveMember("createdAt")
	a.RemoveMember("modifiedAt")

	nested := []*attributes.Attribute{}
	a.ForEachMember(func(name string, contents any) {
		if child, ok := contents.(*attributes.Attribute); ok {
			nested = append(nested, child)
		}
	})

	for _, child := range nested {
		removeSystemMembers(child)
	}
}

// Relationship is a flattened view of a relationship attribute, with one
// entry per instance for multi attributes.
type Relationship struct {
	Name   string
	Target string
}

// Relationships lists all root level relationship targets in document
// order.
func (e *EntityImpl) Relationships() []Relationship {
	result := []Relationship{}

	e.members.Each(func(name string, contents any) {
		a, ok := contents.(*attributes.Attribute)
		if !ok || a.Kind() != attributes.KindRelationship {
			return
		}

		if a.IsMulti() {
			for _, instance := range a.Instances() {
				if target, ok := instance.Value().(string); ok {
					result = append(result, Relationship{Name: name, Target: target})
				}
			}
			return
		}

		if target, ok := a.Value().(string); ok {
			result = append(result, Relationship{Name: name, Target: target})
		}
	})

	return result
}

// ForEachAttribute visits all attribute members in document order.
func (e *EntityImpl) ForEachAttribute(callback func(attributeType, attributeName string, contents any)) error {
	if e.err != nil {
		return e.err
	}

	e.members.Each(func(name string, contents any) {
		if a, ok := contents.(*attributes.Attribute); ok {
			callback(a.Type(), name, a)
		}
	})

	return nil
}

// Duplicate deep copies the entity by serializing it and parsing it back.
func (e *EntityImpl) Duplicate() (*EntityImpl, error) {
	body, err := e.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return NewFromJSON(body)
}

// MarshalJSON serializes the document members in order, emitting the core
// context when the @context list is empty.
func (e *EntityImpl) MarshalJSON() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}

	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	var marshalErr error
	first := true

	e.members.Each(func(name string, contents any) {
		if marshalErr != nil {
			return
		}

		if name == contextMember {
			if contexts, ok := contents.([]string); ok && len(contexts) == 0 {
				contents = []string{DefaultContextURL}
			}
		}

		encoded, err := json.Marshal(contents)
		if err != nil {
			marshalErr = err
			return
		}

		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	})

	if marshalErr != nil {
		return nil, marshalErr
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// KeyValues serializes the simplified representation, where each attribute
// collapses to its value or relationship target.
func (e *EntityImpl) KeyValues() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}

	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	var marshalErr error
	first := true

	e.members.Each(func(name string, contents any) {
		if marshalErr != nil {
			return
		}

		if a, ok := contents.(*attributes.Attribute); ok {
			contents = simplified(a)
		}

		encoded, err := json.Marshal(contents)
		if err != nil {
			marshalErr = err
			return
		}

		if !first {
			buf.WriteByte(',')
		}
		first = false

		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	})

	if marshalErr != nil {
		return nil, marshalErr
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func simplified(a *attributes.Attribute) any {
	if a.IsMulti() {
		values := []any{}
		for _, instance := range a.Instances() {
			values = append(values, simplified(instance))
		}
		return values
	}
	return a.Value()
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
