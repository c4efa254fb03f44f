package decorators

import (
	"github.com/diwise/ngsild-client/pkg/ngsild/types/attributes"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/entities"
)

func Prop(name string, value any, opts ...attributes.Option) entities.EntityDecoratorFunc {
	return func(e *entities.EntityImpl) {
		e.Prop(name, value, opts...)
	}
}

func Rel(name string, object any, opts ...attributes.Option) entities.EntityDecoratorFunc {
	return func(e *entities.EntityImpl) {
		e.Rel(name, object, opts...)
	}
}

func TProp(name string, value any, opts ...attributes.Option) entities.EntityDecoratorFunc {
	return func(e *entities.EntityImpl) {
		e.TProp(name, value, opts...)
	}
}

func RefDevice(device string) entities.EntityDecoratorFunc {
	return Rel("refDevice", device)
}

func Location(latitude, longitude float64) entities.EntityDecoratorFunc {
	return func(e *entities.EntityImpl) {
		e.Loc(latitude, longitude)
	}
}

func DateTime(name string, value any) entities.EntityDecoratorFunc {
	return TProp(name, value)
}

func Number(name string, value float64, opts ...attributes.Option) entities.EntityDecoratorFunc {
	return Prop(name, value, opts...)
}

func Text(name string, value string) entities.EntityDecoratorFunc {
	return Prop(name, value)
}

func DateLastValueReported(timestamp any) entities.EntityDecoratorFunc {
	return DateTime("dateLastValueReported", timestamp)
}

func DateObserved(timestamp any) entities.EntityDecoratorFunc {
	return DateTime("dateObserved", timestamp)
}

func DateCreated(timestamp any) entities.EntityDecoratorFunc {
	return DateTime("dateCreated", timestamp)
}

func DateModified(timestamp any) entities.EntityDecoratorFunc {
	return DateTime("dateModified", timestamp)
}

func Status(value string) entities.EntityDecoratorFunc {
	return Text("status", value)
}

func Temperature(t float64, opts ...attributes.Option) entities.EntityDecoratorFunc {
	return Number("temperature", t, opts...)
}
