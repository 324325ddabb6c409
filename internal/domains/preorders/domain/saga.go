package domain

import "time"

// SagaState is a step of the pre-order saga.
type SagaState string

const (
	SagaValidating         SagaState = "validating"
	SagaPricing            SagaState = "pricing"
	SagaCheckingBalance    SagaState = "checking_balance"
	SagaReserving          SagaState = "reserving"
	SagaReserved           SagaState = "reserved"
	SagaCompleting         SagaState = "completing"
	SagaCompleted          SagaState = "completed"
	SagaCompensatingCancel SagaState = "compensating_cancel"
	SagaCompensated        SagaState = "compensated"
	SagaCompensationFailed SagaState = "compensation_failed"
	SagaFailed             SagaState = "failed"
)

// Terminal reports whether no further transition follows s.
func (s SagaState) Terminal() bool {
	switch s {
	case SagaReserved, SagaCompleted, SagaCompensated, SagaCompensationFailed, SagaFailed:
		return true
	default:
		return false
	}
}

// SagaStep is one journal entry of a saga run.
type SagaStep struct {
	SagaID     string
	OrderID    string
	State      SagaState
	StatusCode int
	Messages   []string
	TraceID    string
	SpanID     string
	OccurredAt time.Time
}

// SagaEvent is published when a saga reaches a terminal state.
type SagaEvent struct {
	Name       string    `json:"name"`
	SagaID     string    `json:"sagaId"`
	OrderID    string    `json:"orderId,omitempty"`
	State      SagaState `json:"state"`
	StatusCode int       `json:"statusCode"`
	Messages   []string  `json:"messages,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

const (
	EventPreOrderReserved           = "preorder.reserved"
	EventPreOrderCompleted          = "preorder.completed"
	EventPreOrderFailed             = "preorder.failed"
	EventPreOrderCompensated        = "preorder.compensated"
	EventPreOrderCompensationFailed = "preorder.compensation_failed"
)
