package ngsild

import (
	"encoding/json"

	"github.com/diwise/ngsild-client/pkg/ngsild/types"
)

type CreateEntityResult struct {
	location string
}

func NewCreateEntityResult(location string) *CreateEntityResult {
	return &CreateEntityResult{
		location: location,
	}
}

func (r CreateEntityResult) Location() string {
	return r.location
}

type DeleteEntityResult struct{}

func NewDeleteEntityResult() *DeleteEntityResult {
	return &DeleteEntityResult{}
}

type MergeEntityResult struct{}

func NewMergeEntityResult() *MergeEntityResult {
	return &MergeEntityResult{}
}

type UpsertEntityResult struct {
	location string
	created  bool
}

// NewUpsertEntityResult reports where the entity lives and whether the
// upsert created it rather than updated it.
func NewUpsertEntityResult(location string, created bool) *UpsertEntityResult {
	return &UpsertEntityResult{
		location: location,
		created:  created,
	}
}

func (r UpsertEntityResult) Location() string {
	return r.location
}

func (r UpsertEntityResult) Created() bool {
	return r.created
}

type QueryEntitiesResult struct {
	Found      chan (types.Entity)
	TotalCount int64

	Count  int64
	Limit  int64
	Offset int64

	PartialResult bool
}

func NewQueryEntitiesResult() *QueryEntitiesResult {
	qer := &QueryEntitiesResult{
		Found:      make(chan types.Entity),
		TotalCount: -1,
	}
	return qer
}

type UpdateEntityAttributesResult struct {
	Updated    []string `json:"updated"`
	NotUpdated []struct {
		AttributeName string `json:"attributeName"`
		Reason        string `json:"reason"`
	} `json:"notUpdated"`
}

func (uear *UpdateEntityAttributesResult) Bytes() []byte {
	b, _ := json.Marshal(uear)
	return b
}

func (uear *UpdateEntityAttributesResult) IsMultiStatus() bool {
	return len(uear.NotUpdated) > 0
}

func NewUpdateEntityAttributesResult(body []byte) (*UpdateEntityAttributesResult, error) {
	uear := &UpdateEntityAttributesResult{}
	if len(body) > 0 {
		err := json.Unmarshal(body, uear)
		if err != nil {
			return nil, err
		}
	}
	return uear, nil
}

// BatchOperation names one of the four entity batch endpoints.
type BatchOperation string

const (
	BatchCreate BatchOperation = "create"
	BatchUpsert BatchOperation = "upsert"
	BatchUpdate BatchOperation = "update"
	BatchDelete BatchOperation = "delete"
)

// BatchEntityError is one failed member of a batch operation, with the
// problem report the broker attached to it.
type BatchEntityError struct {
	EntityID string `json:"entityId"`
	Error    struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status int    `json:"status"`
	} `json:"error"`
}

// BatchResult accumulates the outcome of a chunked batch operation: the
// ids that succeeded and the per entity errors for the rest.
type BatchResult struct {
	Operation BatchOperation
	Success   []string
	Errors    []BatchEntityError
}

func NewBatchResult(operation BatchOperation) *BatchResult {
	return &BatchResult{Operation: operation}
}

// Ok reports whether every member of the batch succeeded.
func (r *BatchResult) Ok() bool {
	return len(r.Errors) == 0
}

// Append merges the outcome of one chunk into the accumulated result.
func (r *BatchResult) Append(other *BatchResult) {
	r.Success = append(r.Success, other.Success...)
	r.Errors = append(r.Errors, other.Errors...)
}

// AddSuccess records ids that the broker accepted without reporting them
// individually, such as on a 201 or 204 response.
func (r *BatchResult) AddSuccess(entityIDs ...string) {
	r.Success = append(r.Success, entityIDs...)
}

// UnmarshalMultiStatus parses the success/errors body of a 207 response
// into the result.
func (r *BatchResult) UnmarshalMultiStatus(body []byte) error {
	parsed := struct {
		Success []string           `json:"success"`
		Errors  []BatchEntityError `json:"errors"`
	}{}

	if err := json.Unmarshal(body, &parsed); err != nil {
		return err
	}

	r.Success = append(r.Success, parsed.Success...)
	r.Errors = append(r.Errors, parsed.Errors...)
	return nil
}

type RetrieveEntityResult struct {
	entity types.Entity
}

func NewRetrieveEntityResult(entity types.Entity) *RetrieveEntityResult {
	return &RetrieveEntityResult{entity: entity}
}

func (r RetrieveEntityResult) Entity() types.Entity {
	return r.entity
}
