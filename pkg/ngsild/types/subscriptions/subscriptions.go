// Package subscriptions holds the subscription document and the
// notification envelope the broker posts to subscribers.
package subscriptions

import (
	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
)

const (
	FormatNormalized string = "normalized"
	FormatKeyValues  string = "keyValues"
)

// EntitySelector narrows a subscription to entities by id, id pattern or
// type. Exactly one field is expected to be set per selector.
type EntitySelector struct {
	ID        string `json:"id,omitempty"`
	IDPattern string `json:"idPattern,omitempty"`
	Type      string `json:"type,omitempty"`
}

type Endpoint struct {
	URI    string `json:"uri"`
	Accept string `json:"accept"`
}

type NotificationParams struct {
	Attributes []string `json:"attributes,omitempty"`
	Format     string   `json:"format"`
	Endpoint   Endpoint `json:"endpoint"`
}

type Subscription struct {
	ID                string               `json:"id,omitempty"`
	Type              string               `json:"type"`
	Name              string               `json:"name,omitempty"`
	Description       string               `json:"description,omitempty"`
	Entities          []EntitySelector     `json:"entities,omitempty"`
	WatchedAttributes []string             `json:"watchedAttributes,omitempty"`
	Query             string               `json:"q,omitempty"`
	IsActive          bool                 `json:"isActive"`
	Notification      NotificationParams   `json:"notification"`
	Context           any                  `json:"@context"`
}

type SubscriptionDecoratorFunc func(s *Subscription)

// New creates a subscription notifying the given endpoint uri. At least
// one entity selector or watched attribute must be contributed by the
// decorators.
func New(notificationURI string, decorators ...SubscriptionDecoratorFunc) (*Subscription, error) {
	s := &Subscription{
		Type:     "Subscription",
		IsActive: true,
		Notification: NotificationParams{
			Format: FormatNormalized,
			Endpoint: Endpoint{
				URI:    notificationURI,
				Accept: "application/ld+json",
			},
		},
		Context: "https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld",
	}

	for _, decorate := range decorators {
		decorate(s)
	}

	if len(s.Entities) == 0 && len(s.WatchedAttributes) == 0 {
		return nil, errors.NewMissingMandatoryFieldError("entities or watchedAttributes")
	}

	return s, nil
}

func ID(id string) SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.ID = id }
}

func Name(name string) SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.Name = name }
}

func Description(description string) SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.Description = description }
}

// EntityID selects a single entity by its fully qualified id.
func EntityID(id string) SubscriptionDecoratorFunc {
	return func(s *Subscription) {
		s.Entities = append(s.Entities, EntitySelector{ID: id})
	}
}

// EntityIDPattern selects entities whose ids match a regular expression.
func EntityIDPattern(pattern string) SubscriptionDecoratorFunc {
	return func(s *Subscription) {
		s.Entities = append(s.Entities, EntitySelector{IDPattern: pattern})
	}
}

// EntityType selects all entities of a type.
func EntityType(entityType string) SubscriptionDecoratorFunc {
	return func(s *Subscription) {
		s.Entities = append(s.Entities, EntitySelector{Type: entityType})
	}
}

// Watch triggers notifications on changes to the named attributes.
func Watch(attributeNames ...string) SubscriptionDecoratorFunc {
	return func(s *Subscription) {
		s.WatchedAttributes = append(s.WatchedAttributes, attributeNames...)
	}
}

// Query filters matching entities with an NGSI-LD query expression.
func Query(q string) SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.Query = q }
}

// Notify limits the attributes included in notifications.
func Notify(attributeNames ...string) SubscriptionDecoratorFunc {
	return func(s *Subscription) {
		s.Notification.Attributes = append(s.Notification.Attributes, attributeNames...)
	}
}

// KeyValues switches notifications to the simplified representation.
func KeyValues() SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.Notification.Format = FormatKeyValues }
}

// Inactive creates the subscription in paused state.
func Inactive() SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.IsActive = false }
}

func Context(ctx string) SubscriptionDecoratorFunc {
	return func(s *Subscription) { s.Context = ctx }
}
