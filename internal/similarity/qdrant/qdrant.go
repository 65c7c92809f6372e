// Package qdrant implements similarity.Index on a Qdrant collection.
package qdrant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/efebarandurmaz/archscore/internal/similarity"
)

// Index stores design vectors in Qdrant. Point ids are derived from the
// diagram identity so re-indexing a design overwrites its previous point.
type Index struct {
	conn       *grpc.ClientConn
	points     pb.PointsClient
	collection string
}

// New connects to Qdrant and creates the collection with cosine distance if
// it does not exist yet.
func New(ctx context.Context, host string, port int, collection string, dim int) (*Index, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}

	collections := pb.NewCollectionsClient(conn)
	exists, err := collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: collection})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("qdrant collection check: %w", err)
	}
	if !exists.GetResult().GetExists() {
		_, err = collections.Create(ctx, &pb.CreateCollection{
			CollectionName: collection,
			VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
				Size:     uint64(dim),
				Distance: pb.Distance_Cosine,
			}}},
		})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("qdrant create collection %s: %w", collection, err)
		}
	}

	return &Index{
		conn:       conn,
		points:     pb.NewPointsClient(conn),
		collection: collection,
	}, nil
}

// PointID maps a diagram identity to a stable UUID.
func PointID(identity string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("archscore:"+identity)).String()
}

func (x *Index) Upsert(ctx context.Context, entries []similarity.Entry) error {
	points := make([]*pb.PointStruct, len(entries))
	for i, e := range entries {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(e.Identity)}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: e.Vector}}},
			Payload: payload(e),
		}
	}

	_, err := x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Points:         points,
	})
	return err
}

func payload(e similarity.Entry) map[string]*pb.Value {
	return map[string]*pb.Value{
		"identity":    {Kind: &pb.Value_StringValue{StringValue: e.Identity}},
		"fingerprint": {Kind: &pb.Value_StringValue{StringValue: e.Fingerprint}},
		"total":       {Kind: &pb.Value_IntegerValue{IntegerValue: int64(e.Total)}},
	}
}

func (x *Index) Search(ctx context.Context, vec []float32, topK int) ([]similarity.Result, error) {
	resp, err := x.points.Search(ctx, &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vec,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, err
	}

	results := make([]similarity.Result, len(resp.Result))
	for i, pt := range resp.Result {
		results[i] = fromPayload(pt.Payload, pt.Score)
	}
	return results, nil
}

func fromPayload(p map[string]*pb.Value, score float32) similarity.Result {
	return similarity.Result{
		Identity:    p["identity"].GetStringValue(),
		Fingerprint: p["fingerprint"].GetStringValue(),
		Total:       int(p["total"].GetIntegerValue()),
		Score:       score,
	}
}

func (x *Index) Close() error {
	return x.conn.Close()
}

var _ similarity.Index = (*Index)(nil)
