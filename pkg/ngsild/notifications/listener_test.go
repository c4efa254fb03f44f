package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diwise/ngsild-client/pkg/ngsild/types/subscriptions"
	"github.com/matryer/is"
)

const notificationBody string = `{
	"id": "urn:ngsi-ld:Notification:n1",
	"type": "Notification",
	"subscriptionId": "urn:ngsi-ld:Subscription:sub1",
	"notifiedAt": "2022-02-26T15:00:00Z",
	"data": [{
		"@context": "https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context.jsonld",
		"id": "urn:ngsi-ld:Room:Room1",
		"type": "Room",
		"temperature": {"type": "Property", "value": 23}
	}]
}`

func TestNotificationHandlerPassesEntitiesToTheReceiver(t *testing.T) {
	is := is.New(t)

	received := []string{}
	handler := NewNotificationHandler(func(ctx context.Context, n *subscriptions.Notification) error {
		for _, e := range n.Data {
			received = append(received, e.ID())
		}
		return nil
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/notify", bytes.NewBufferString(notificationBody)))

	is.Equal(w.Code, http.StatusOK)
	is.Equal(received, []string{"urn:ngsi-ld:Room:Room1"})
}

func TestNotificationHandlerRejectsMalformedBodies(t *testing.T) {
	is := is.New(t)

	handler := NewNotificationHandler(func(ctx context.Context, n *subscriptions.Notification) error {
		t.Fail()
		return nil
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/notify", bytes.NewBufferString("not json")))

	is.Equal(w.Code, http.StatusBadRequest)
	is.Equal(w.Header().Get("Content-Type"), "application/problem+json")
}

func TestNotificationHandlerReportsReceiverFailures(t *testing.T) {
	is := is.New(t)

	handler := NewNotificationHandler(func(ctx context.Context, n *subscriptions.Notification) error {
		return fmt.Errorf("receiver is on fire")
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodPost, "/notify", bytes.NewBufferString(notificationBody)))

	is.Equal(w.Code, http.StatusInternalServerError)

	problem := struct {
		Detail string `json:"detail"`
	}{}
	is.NoErr(json.Unmarshal(w.Body.Bytes(), &problem))
	is.Equal(problem.Detail, "receiver is on fire")
}
