package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/diwise/ngsild-client/pkg/ngsild"
	"github.com/diwise/ngsild-client/pkg/ngsild/errors"
	"github.com/diwise/ngsild-client/pkg/ngsild/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CreateBatch creates entities through the batch endpoint, chunked at the
// configured batch size.
func (c cbClient) CreateBatch(ctx context.Context, entities []types.Entity, headers map[string][]string) (*ngsild.BatchResult, error) {
	return c.tracedBatchOperation(ctx, ngsild.BatchCreate, entities, headers)
}

// UpsertBatch creates or replaces entities through the batch endpoint.
func (c cbClient) UpsertBatch(ctx context.Context, entities []types.Entity, headers map[string][]string) (*ngsild.BatchResult, error) {
	return c.tracedBatchOperation(ctx, ngsild.BatchUpsert, entities, headers)
}

// UpdateBatch updates existing entities through the batch endpoint.
func (c cbClient) UpdateBatch(ctx context.Context, entities []types.Entity, headers map[string][]string) (*ngsild.BatchResult, error) {
	return c.tracedBatchOperation(ctx, ngsild.BatchUpdate, entities, headers)
}

// DeleteBatch deletes entities by id through the batch endpoint.
func (c cbClient) DeleteBatch(ctx context.Context, entityIDs []string, headers map[string][]string) (*ngsild.BatchResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "batch-delete-entities",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
		trace.WithAttributes(attribute.Int("entity-count", len(entityIDs))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	chunks := make([]batchChunk, 0, (len(entityIDs)+c.batchSize-1)/c.batchSize)

	for start := 0; start < len(entityIDs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(entityIDs) {
			end = len(entityIDs)
		}

		ids := entityIDs[start:end]
		body, marshalErr := json.Marshal(ids)
		if marshalErr != nil {
			err = marshalErr
			return nil, err
		}

		chunks = append(chunks, batchChunk{body: body, entityIDs: ids})
	}

	result, err := c.sendBatchChunks(ctx, ngsild.BatchDelete, chunks, headers)
	return result, err
}

func (c cbClient) tracedBatchOperation(ctx context.Context, op ngsild.BatchOperation, entities []types.Entity, headers map[string][]string) (*ngsild.BatchResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "batch-"+string(op)+"-entities",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
		trace.WithAttributes(attribute.Int("entity-count", len(entities))),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	result, err := c.batchOperation(ctx, op, entities, headers)
	return result, err
}

func (c cbClient) batchOperation(ctx context.Context, op ngsild.BatchOperation, entities []types.Entity, headers map[string][]string) (*ngsild.BatchResult, error) {
	chunks := make([]batchChunk, 0, (len(entities)+c.batchSize-1)/c.batchSize)

	for start := 0; start < len(entities); start += c.batchSize {
		end := start + c.batchSize
		if end > len(entities) {
			end = len(entities)
		}

		part := entities[start:end]

		body, err := json.Marshal(part)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(part))
		for _, e := range part {
			ids = append(ids, e.ID())
		}

		chunks = append(chunks, batchChunk{body: body, entityIDs: ids})
	}

	return c.sendBatchChunks(ctx, op, chunks, headers)
}

type batchChunk struct {
	body      []byte
	entityIDs []string
}

// sendBatchChunks posts the chunks to the batch endpoint, keeping at most
// the configured number of requests in flight, and merges their outcomes.
// The first transport or protocol error aborts the whole operation.
func (c cbClient) sendBatchChunks(ctx context.Context, op ngsild.BatchOperation, chunks []batchChunk, headers map[string][]string) (*ngsild.BatchResult, error) {
	result := ngsild.NewBatchResult(op)

	if len(chunks) == 0 {
		return result, nil
	}

	if c.concurrency <= 1 || len(chunks) == 1 {
		for _, chunk := range chunks {
			chunkResult, err := c.sendBatchChunk(ctx, op, chunk, headers)
			if err != nil {
				return nil, err
			}
			result.Append(chunkResult)
		}
		return result, nil
	}

	var wg sync.WaitGroup

	results := make(chan *ngsild.BatchResult, len(chunks))
	failures := make(chan error, len(chunks))
	inflight := make(chan struct{}, c.concurrency)

	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk batchChunk) {
			defer wg.Done()

			inflight <- struct{}{}
			defer func() { <-inflight }()

			chunkResult, err := c.sendBatchChunk(ctx, op, chunk, headers)
			if err != nil {
				failures <- err
				return
			}
			results <- chunkResult
		}(chunk)
	}

	wg.Wait()
	close(results)
	close(failures)

	if err := <-failures; err != nil {
		return nil, err
	}

	for chunkResult := range results {
		result.Append(chunkResult)
	}

	return result, nil
}

func (c cbClient) sendBatchChunk(ctx context.Context, op ngsild.BatchOperation, chunk batchChunk, headers map[string][]string) (*ngsild.BatchResult, error) {
	response, responseBody, err := c.callContextSource(
		ctx, http.MethodPost, c.baseURL+"/ngsi-ld/v1/entityOperations/"+string(op), bytes.NewBuffer(chunk.body), headers,
	)
	if err != nil {
		return nil, err
	}

	result := ngsild.NewBatchResult(op)

	switch response.StatusCode {
	case http.StatusCreated:
		createdIDs := []string{}
		if err := json.Unmarshal(responseBody, &createdIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal created ids: %s (%w)", err.Error(), errors.ErrBadResponse)
		}
		result.AddSuccess(createdIDs...)
	case http.StatusNoContent:
		result.AddSuccess(chunk.entityIDs...)
	case http.StatusMultiStatus:
		if err := result.UnmarshalMultiStatus(responseBody); err != nil {
			return nil, fmt.Errorf("failed to unmarshal multi status body: %s (%w)", err.Error(), errors.ErrBadResponse)
		}
	default:
		contentType := response.Header.Get("Content-Type")
		if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
			return nil, errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
		}
		return nil, fmt.Errorf("context source returned status code %d (content-type: %s, body: %s)", response.StatusCode, contentType, string(responseBody))
	}

	return result, nil
}
