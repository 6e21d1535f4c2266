// Package transport carries tasks and callbacks between the client, the
// coordinator and the workers as JSON over HTTP. Requests are retried with
// exponential backoff while the peer is unreachable or overloaded.
package transport

import "github.com/rbazzell/distributed-systems-project/internal/matrix"

// RegisterRequest announces a worker to the coordinator.
type RegisterRequest struct {
	WorkerID  string `json:"worker_id"`
	WorkerURL string `json:"worker_url"`
}

// SubmitRequest is a client multiplication request.
type SubmitRequest struct {
	MatrixA matrix.Matrix `json:"matrix_a"`
	MatrixB matrix.Matrix `json:"matrix_b"`
}

// SubtaskRequest hands one Strassen sub-product back to the coordinator.
type SubtaskRequest struct {
	MatrixA   matrix.Matrix `json:"matrix_a"`
	MatrixB   matrix.Matrix `json:"matrix_b"`
	SlotIndex *int          `json:"slot_index"`
}

// ResultRequest reports the product computed for a task.
type ResultRequest struct {
	Result matrix.Matrix `json:"result"`
}

// FailureRequest reports that a task could not be processed.
type FailureRequest struct {
	Error string `json:"error"`
}

// TaskAccepted acknowledges a submitted task or sub-task.
type TaskAccepted struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// StatusResponse is a bare acknowledgement.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
