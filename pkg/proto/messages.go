// Package proto defines the shared message types exchanged between the
// descriptor server and its clients over the JSON-over-TCP RPC layer
// (see pkg/grpc), and the event payloads published to Kafka.
//
// The types are hand-written; JSON struct tags define the wire format.
package proto

// Method names served by cmd/descriptorserver.
const (
	MethodComputeBatch = "Descriptor.ComputeBatch"
	MethodHealth       = "Descriptor.Health"
)

// ---------- Descriptor ----------

// Item is a content unit submitted for descriptor computation.
type Item struct {
	ID          string `json:"id"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// ComputeBatchRequest is the input to the ComputeBatch RPC.
type ComputeBatchRequest struct {
	Items       []Item `json:"items"`
	Overwrite   bool   `json:"overwrite"`
	Concurrency int    `json:"concurrency,omitempty"`
}

// Vector carries a computed descriptor keyed by item content key.
type Vector struct {
	Type   string    `json:"type"`
	Values []float32 `json:"values"`
}

// ComputeBatchResponse maps item content keys to their descriptors. It holds
// one entry per distinct key in the request.
type ComputeBatchResponse struct {
	Generator string            `json:"generator"`
	Vectors   map[string]Vector `json:"vectors"`
}

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// ---------- Events ----------

// DescriptorComputed is published once per item yielded by the batch
// pipeline. Consumers use VectorKey to fetch the vector from the shared index.
type DescriptorComputed struct {
	ItemID     string `json:"item_id"`
	VectorKey  string `json:"vector_key"`
	Generator  string `json:"generator"`
	Dimension  int    `json:"dimension"`
	ComputedAt int64  `json:"computed_at"`
}
