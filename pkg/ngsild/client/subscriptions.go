package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types/subscriptions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
)

const TraceAttributeSubscriptionID string = "subscription-id"

// CreateSubscription registers the subscription with the broker and
// returns the id the broker assigned to it.
func (c cbClient) CreateSubscription(ctx context.Context, subscription *subscriptions.Subscription, headers map[string][]string) (string, error) {
	var err error

	ctx, span := tracer.Start(ctx, "create-subscription",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := json.Marshal(subscription)
	if err != nil {
		return "", err
	}

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodPost, c.baseURL+"/ngsi-ld/v1/subscriptions", bytes.NewBuffer(body), headers,
	)
	if err != nil {
		return "", err
	}

	if response.StatusCode != http.StatusCreated {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return "", err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return "", err
	}

	location := response.Header.Get("Location")
	if location == "" {
		err = fmt.Errorf("missing location header in subscription response (%w)", errors.ErrBadResponse)
		return "", err
	}

	assignedID := location[strings.LastIndex(location, "/")+1:]

	if subscription.ID != "" && subscription.ID != assignedID {
		err = fmt.Errorf("broker returned subscription id %s, expected %s (%w)", assignedID, subscription.ID, errors.ErrBadResponse)
		return "", err
	}

	return assignedID, nil
}

func (c cbClient) RetrieveSubscription(ctx context.Context, subscriptionID string, headers map[string][]string) (*subscriptions.Subscription, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-subscription",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
		trace.WithAttributes(attribute.String(TraceAttributeSubscriptionID, subscriptionID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodGet, c.baseURL+"/ngsi-ld/v1/subscriptions/"+url.QueryEscape(subscriptionID), nil, headers,
	)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return nil, err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return nil, err
	}

	subscription := &subscriptions.Subscription{}
	if err = json.Unmarshal(responseBody, subscription); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscription: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	return subscription, nil
}

func (c cbClient) QuerySubscriptions(ctx context.Context, headers map[string][]string) ([]subscriptions.Subscription, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-subscriptions",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodGet, c.baseURL+"/ngsi-ld/v1/subscriptions", nil, headers,
	)
	if err != nil {
		return nil, err
	}

	if response.StatusCode != http.StatusOK {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return nil, err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return nil, err
	}

	result := []subscriptions.Subscription{}
	if err = json.Unmarshal(responseBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal subscriptions: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	return result, nil
}

func (c cbClient) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	var err error

	ctx, span := tracer.Start(ctx, "delete-subscription",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
		trace.WithAttributes(attribute.String(TraceAttributeSubscriptionID, subscriptionID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodDelete, c.baseURL+"/ngsi-ld/v1/subscriptions/"+url.QueryEscape(subscriptionID), nil, nil,
	)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusNoContent {
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			err = errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
			return err
		}

		err = fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
		return err
	}

	return nil
}
