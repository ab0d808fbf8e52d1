package model

import (
	"encoding/json"
	"time"
)

// OperationKind identifies the domain action a queued operation carries.
type OperationKind string

const (
	OpCreateSale    OperationKind = "CREATE_SALE"
	OpUpdateProduct OperationKind = "UPDATE_PRODUCT"
	OpCreateProduct OperationKind = "CREATE_PRODUCT"
)

// OperationState is the delivery state of a queued operation.
type OperationState string

const (
	// OpPending means the operation is waiting for a delivery attempt.
	OpPending OperationState = "pending"
	// OpInFlight means a delivery attempt is currently running.
	OpInFlight OperationState = "in_flight"
	// OpFailed means delivery was abandoned after exhausting retries.
	// Failed operations stay in the queue until cleared explicitly.
	OpFailed OperationState = "failed"
)

// QueuedOperation is one pending domain action, persisted until the backend
// durably accepts it. The payload carries its own client-generated entity ID,
// so redelivery of the same operation is safe.
type QueuedOperation struct {
	ID            string          `json:"id"`
	Kind          OperationKind   `json:"kind"`
	Endpoint      string          `json:"endpoint"`
	Method        string          `json:"method"`
	Payload       json.RawMessage `json:"payload"`
	EnqueuedAt    time.Time       `json:"enqueued_at"`
	Attempts      int             `json:"attempts"`
	LastAttemptAt time.Time       `json:"last_attempt_at,omitempty"`
	State         OperationState  `json:"state"`
	LastError     string          `json:"last_error,omitempty"`
}

// OperationDraft is the caller-supplied part of a queued operation. The queue
// manager assigns identity, timestamps and state.
type OperationDraft struct {
	Kind     OperationKind   `json:"kind"`
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method"`
	Payload  json.RawMessage `json:"payload"`
}
