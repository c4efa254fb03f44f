package attributes

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/geojson"
)

// MarshalJSON serializes the node with its type tag first, the value or
// relationship target second and the children after that, in insertion
// order. Multi attributes serialize as an array of their instances.
func (a *Attribute) MarshalJSON() ([]byte, error) {
	if a.IsMulti() {
		return json.Marshal(a.instances)
	}

	buf := &bytes.Buffer{}
	buf.WriteByte('{')

	fmt.Fprintf(buf, "\"type\":\"%s\"", a.Type())

	valueKey := "value"
	if a.kind == KindRelationship {
		valueKey = "object"
	}

	value, err := json.Marshal(a.value)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(buf, ",\"%s\":", valueKey)
	buf.Write(value)

	var memberErr error

	a.ForEachMember(func(name string, contents any) {
		if memberErr != nil {
			return
		}

		encoded, err := json.Marshal(contents)
		if err != nil {
			memberErr = err
			return
		}

		key, _ := json.Marshal(name)
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	})

	if memberErr != nil {
		return nil, memberErr
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Unmarshal parses a serialized attribute node. Arrays become multi
// attributes, object valued members that carry a recognized type tag become
// nested attributes, everything else is kept as a raw member.
func Unmarshal(raw json.RawMessage) (*Attribute, error) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) == 0 {
		return nil, errors.NewBadRequestDataError("empty attribute body")
	}

	if trimmed[0] == '[' {
		instances := []json.RawMessage{}

		err := json.Unmarshal(trimmed, &instances)
		if err != nil {
			return nil, errors.NewBadRequestDataError(err.Error())
		}

		if len(instances) == 0 {
			return nil, errors.NewBadRequestDataError("empty multi attribute")
		}

		multi := &Attribute{}
		for _, body := range instances {
			instance, err := Unmarshal(body)
			if err != nil {
				return nil, err
			}
			multi.instances = append(multi.instances, instance)
		}

		multi.kind = multi.instances[0].kind
		return multi, nil
	}

	members, err := DecodeObject(trimmed)
	if err != nil {
		return nil, errors.NewBadRequestDataError(err.Error())
	}

	a := &Attribute{children: NewMembers()}
	var valueBody json.RawMessage

	for _, m := range members {
		switch m.Name {
		case "type":
			typeTag := ""
			if err := json.Unmarshal(m.Raw, &typeTag); err != nil {
				return nil, errors.NewBadRequestDataError(err.Error())
			}

			switch typeTag {
			case "Property":
				a.kind = KindProperty
			case "GeoProperty":
				a.kind = KindGeoProperty
			case "Relationship":
				a.kind = KindRelationship
			default:
				return nil, errors.NewBadRequestDataError("unknown attribute type " + typeTag)
			}
		case "value", "object":
			valueBody = m.Raw
		default:
			contents, err := DecodeMember(m.Raw)
			if err != nil {
				return nil, err
			}
			a.children.Set(m.Name, contents)
		}
	}

	if valueBody == nil {
		return nil, errors.NewBadRequestDataError("attribute without a value")
	}

	err = a.unmarshalValue(valueBody)
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (a *Attribute) unmarshalValue(body json.RawMessage) error {
	if a.kind == KindGeoProperty {
		geometryData := map[string]any{}
		if err := json.Unmarshal(body, &geometryData); err != nil {
			return errors.NewBadRequestDataError(err.Error())
		}

		geometry, err := geojson.UnmarshalG(geometryData)
		if err != nil {
			return err
		}

		a.value = geometry
		return nil
	}

	if a.kind == KindProperty {
		tv := TemporalValue{}
		if err := json.Unmarshal(body, &tv); err == nil && tv.Type != "" && tv.Value != "" {
			a.kind = KindTemporalProperty
			a.value = tv
			return nil
		}
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return errors.NewBadRequestDataError(err.Error())
	}

	a.value = value
	return nil
}

// DecodeMember parses a child: a nested attribute when the body looks
// like one, a raw value otherwise.
func DecodeMember(raw json.RawMessage) (any, error) {
	if looksLikeAttribute(raw) {
		return Unmarshal(raw)
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, errors.NewBadRequestDataError(err.Error())
	}

	return value, nil
}

func looksLikeAttribute(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return false
	}

	if trimmed[0] == '[' {
		elements := []json.RawMessage{}
		if err := json.Unmarshal(trimmed, &elements); err != nil || len(elements) == 0 {
			return false
		}
		return looksLikeAttribute(elements[0])
	}

	if trimmed[0] != '{' {
		return false
	}

	probe := struct {
		Type string `json:"type"`
	}{}

	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return false
	}

	return probe.Type == "Property" || probe.Type == "GeoProperty" || probe.Type == "Relationship"
}
