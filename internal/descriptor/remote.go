package descriptor

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/proto"

	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
)

// RemoteGenerator forwards batches to a descriptor server over the RPC layer.
// The request's Factory is applied locally to the returned values.
type RemoteGenerator struct {
	client *grpc.Client
	name   string
}

func DialRemoteGenerator(addr string) (*RemoteGenerator, error) {
	c, err := grpc.Dial(addr)
	if err != nil {
		return nil, err
	}
	return &RemoteGenerator{client: c, name: "remote@" + addr}, nil
}

func (r *RemoteGenerator) Name() string { return r.name }

func (r *RemoteGenerator) ComputeBatch(ctx context.Context, req Request) (map[string]Vector, error) {
	in := proto.ComputeBatchRequest{
		Items:       make([]proto.Item, len(req.Items)),
		Overwrite:   req.Overwrite,
		Concurrency: req.Concurrency,
	}
	for i, it := range req.Items {
		in.Items[i] = proto.Item{ID: it.ID, ContentType: it.ContentType, Content: it.Content}
	}

	var resp proto.ComputeBatchResponse
	if err := r.client.Call(ctx, proto.MethodComputeBatch, &in, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrGeneration, r.name, err)
	}

	factory := req.factory()
	out := make(map[string]Vector, len(resp.Vectors))
	for key, v := range resp.Vectors {
		out[key] = factory(v.Type, key, v.Values)
	}
	return out, nil
}

func (r *RemoteGenerator) Close() error {
	return r.client.Close()
}

// ServeComputeBatch adapts gen into the handler body for proto.MethodComputeBatch.
func ServeComputeBatch(ctx context.Context, gen Generator, in proto.ComputeBatchRequest) (*proto.ComputeBatchResponse, error) {
	req := Request{
		Items:       make([]Item, len(in.Items)),
		Overwrite:   in.Overwrite,
		Concurrency: in.Concurrency,
	}
	for i, it := range in.Items {
		req.Items[i] = Item{ID: it.ID, ContentType: it.ContentType, Content: it.Content}
	}
	vectors, err := gen.ComputeBatch(ctx, req)
	if err != nil {
		return nil, err
	}
	resp := &proto.ComputeBatchResponse{
		Generator: gen.Name(),
		Vectors:   make(map[string]proto.Vector, len(vectors)),
	}
	for key, v := range vectors {
		resp.Vectors[key] = proto.Vector{Type: v.Type, Values: v.Values}
	}
	return resp, nil
}
