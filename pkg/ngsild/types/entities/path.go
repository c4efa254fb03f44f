package entities

import (
	"strings"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/attributes"
)

// Path reads the member at a dot separated path, such as
// "temperature.value" or "temperature.accuracy.value". The result is the
// attribute node itself when the path stops at one, the bare value for a
// final "value" segment and the raw member otherwise.
func (e *EntityImpl) Path(path string) (any, error) {
	segments, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	var current any

	if v, ok := e.members.Get(segments[0]); ok {
		current = v
	} else {
		return nil, errors.NewPathNotFoundError(path)
	}

	for _, segment := range segments[1:] {
		a, ok := current.(*attributes.Attribute)
		if !ok {
			return nil, errors.NewPathNotFoundError(path)
		}

		if segment == "value" {
			current = a.Value()
			continue
		}

		child, ok := a.Member(segment)
		if !ok {
			return nil, errors.NewPathNotFoundError(path)
		}
		current = child
	}

	return current, nil
}

// SetPath writes the member at a dot separated path. Missing intermediate
// attributes are created as plain properties, but only when the final
// segment is "value" or reserved metadata; any other dangling path is an
// ErrPathNotFound. The id and type members cannot be written this way.
func (e *EntityImpl) SetPath(path string, value any) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	final := segments[len(segments)-1]

	if len(segments) == 1 {
		return e.setRootPath(path, final, value)
	}

	createIntermediates := final == "value" || attributes.IsReservedMetadata(final)

	parent, err := e.walkToParent(path, segments[:len(segments)-1], createIntermediates)
	if err != nil {
		return err
	}

	if final == "value" {
		return parent.SetValue(value)
	}

	if child, ok := parent.Member(final); ok {
		if a, ok := child.(*attributes.Attribute); ok {
			return a.SetValue(value)
		}
	}

	parent.SetMember(final, value)
	return nil
}

// RemovePath deletes the member at a dot separated path. The id and type
// members are immutable.
func (e *EntityImpl) RemovePath(path string) error {
	segments, err := splitPath(path)
	if err != nil {
		return err
	}

	final := segments[len(segments)-1]

	if final == idMember || final == typeMember {
		return errors.NewImmutableFieldError(final)
	}

	if len(segments) == 1 {
		if !e.members.Delete(final) {
			return errors.NewPathNotFoundError(path)
		}
		return nil
	}

	parent, err := e.walkToParent(path, segments[:len(segments)-1], false)
	if err != nil {
		return err
	}

	if !parent.RemoveMember(final) {
		return errors.NewPathNotFoundError(path)
	}

	return nil
}

// Increment adds a delta to the numeric value at a dot separated path.
// A path that resolves to a non numeric value is an ErrTypeMismatch.
func (e *EntityImpl) Increment(path string, delta float64) error {
	current, err := e.Path(path)
	if err != nil {
		return err
	}

	target := current
	if a, ok := current.(*attributes.Attribute); ok {
		target = a.Value()
	}

	number, ok := asFloat(target)
	if !ok {
		return errors.NewTypeMismatchError("cannot increment a non numeric value at " + path)
	}

	if a, ok := current.(*attributes.Attribute); ok {
		return a.SetValue(number + delta)
	}

	segments, _ := splitPath(path)
	if len(segments) == 1 {
		return e.SetPath(path+".value", number+delta)
	}

	return e.SetPath(path, number+delta)
}

func (e *EntityImpl) setRootPath(path, name string, value any) error {
	if name == idMember || name == typeMember {
		return errors.NewImmutableFieldError(name)
	}

	if name == contextMember {
		contexts, ok := value.([]string)
		if !ok {
			return errors.NewTypeMismatchError("@context must be a string array")
		}
		e.members.Set(contextMember, contexts)
		return nil
	}

	if existing, ok := e.Attribute(name); ok {
		return existing.SetValue(value)
	}

	return e.AddProperty(name, value)
}

// walkToParent resolves all but the final segment, optionally creating
// missing intermediates as plain properties.
func (e *EntityImpl) walkToParent(path string, segments []string, create bool) (*attributes.Attribute, error) {
	var parent *attributes.Attribute

	v, ok := e.members.Get(segments[0])
	if !ok {
		if !create {
			return nil, errors.NewPathNotFoundError(path)
		}

		a, err := attributes.NewProperty(nil, attributes.NewParams())
		if err != nil {
			return nil, err
		}
		e.members.Set(segments[0], a)
		v = a
	}

	parent, ok = v.(*attributes.Attribute)
	if !ok {
		return nil, errors.NewPathNotFoundError(path)
	}

	for _, segment := range segments[1:] {
		child, ok := parent.Member(segment)
		if !ok {
			if !create {
				return nil, errors.NewPathNotFoundError(path)
			}

			a, err := attributes.NewProperty(nil, attributes.NewParams())
			if err != nil {
				return nil, err
			}
			parent.SetMember(segment, a)
			child = a
		}

		parent, ok = child.(*attributes.Attribute)
		if !ok {
			return nil, errors.NewPathNotFoundError(path)
		}
	}

	return parent, nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, errors.NewPathNotFoundError(path)
	}

	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if segment == "" {
			return nil, errors.NewPathNotFoundError(path)
		}
	}

	return segments, nil
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
