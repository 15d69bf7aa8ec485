// Package semantic owns all Qdrant operations: passage upsert, top-k
// similarity search, and single-vector updates for re-embedding.
package semantic

import (
	"context"
	"fmt"

	"github.com/CoachingAI/coaching-mvp/engine/domain"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the slice of pb.PointsClient used by the store.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeletePoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Get(ctx context.Context, in *pb.GetPoints, opts ...grpc.CallOption) (*pb.GetResponse, error)
	UpdateVectors(ctx context.Context, in *pb.UpdatePointVectors, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
}

// collectionsAPI is the slice of pb.CollectionsClient used by the store.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the corpus store: insert-with-embedding and top-k search.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a VectorStore over existing clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// UpsertPassages stores passages in one batch. An ingestion job calls this
// exactly once after all its chunks are embedded, so a failed job leaves
// zero passages behind.
func (v *VectorStore) UpsertPassages(ctx context.Context, passages []domain.Passage) error {
	if len(passages) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(passages))
	for i, p := range passages {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Embedding},
				},
			},
			Payload: passagePayload(p),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d passages: %w: %w", len(passages), domain.ErrPersistenceFailure, err)
	}
	return nil
}

// DeleteBySourceID removes all passages derived from a source. Used when
// a source object is deleted or re-ingested.
func (v *VectorStore) DeleteBySourceID(ctx context.Context, sourceID string) error {
	wait := true
	_, err := v.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Filter{
				Filter: &pb.Filter{
					Must: []*pb.Condition{fieldMatch("source_id", sourceID)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: delete by source_id %s: %w", sourceID, err)
	}
	return nil
}

// Search performs k-NN similarity search, most similar first.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, topK int) ([]domain.Passage, error) {
	resp, err := v.points.Search(ctx, &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]domain.Passage, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		p := passageFromPayload(r.GetPayload())
		p.ID = r.GetId().GetUuid()
		p.Score = r.GetScore()
		results[i] = p
	}
	return results, nil
}

// FetchPassage loads one passage's payload by point id.
func (v *VectorStore) FetchPassage(ctx context.Context, id string) (domain.Passage, error) {
	resp, err := v.points.Get(ctx, &pb.GetPoints{
		CollectionName: v.collection,
		Ids:            []*pb.PointId{{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}},
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return domain.Passage{}, fmt.Errorf("semantic: get passage %s: %w", id, err)
	}
	if len(resp.GetResult()) == 0 {
		return domain.Passage{}, fmt.Errorf("semantic: passage %s: %w", id, domain.ErrNotFound)
	}
	p := passageFromPayload(resp.GetResult()[0].GetPayload())
	p.ID = id
	return p, nil
}

// UpdateVector overwrites a single passage's embedding in place.
func (v *VectorStore) UpdateVector(ctx context.Context, id string, embedding []float32) error {
	wait := true
	_, err := v.points.UpdateVectors(ctx, &pb.UpdatePointVectors{
		CollectionName: v.collection,
		Wait:           &wait,
		Points: []*pb.PointVectors{{
			Id: &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: embedding}},
			},
		}},
	})
	if err != nil {
		return fmt.Errorf("semantic: update vector %s: %w: %w", id, domain.ErrPersistenceFailure, err)
	}
	return nil
}

func passagePayload(p domain.Passage) map[string]*pb.Value {
	return map[string]*pb.Value{
		"text":        {Kind: &pb.Value_StringValue{StringValue: p.Text}},
		"source_id":   {Kind: &pb.Value_StringValue{StringValue: p.SourceID}},
		"user_id":     {Kind: &pb.Value_StringValue{StringValue: p.UserID}},
		"chunk_index": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(p.ChunkIndex)}},
		"kind":        {Kind: &pb.Value_StringValue{StringValue: string(p.Kind)}},
		"location":    {Kind: &pb.Value_StringValue{StringValue: p.Location}},
		"name":        {Kind: &pb.Value_StringValue{StringValue: p.Name}},
	}
}

func passageFromPayload(payload map[string]*pb.Value) domain.Passage {
	p := domain.Passage{}
	for k, val := range payload {
		switch k {
		case "text":
			p.Text = val.GetStringValue()
		case "source_id":
			p.SourceID = val.GetStringValue()
		case "user_id":
			p.UserID = val.GetStringValue()
		case "chunk_index":
			p.ChunkIndex = int(val.GetIntegerValue())
		case "kind":
			p.Kind = domain.SourceKind(val.GetStringValue())
		case "location":
			p.Location = val.GetStringValue()
		case "name":
			p.Name = val.GetStringValue()
		}
	}
	return p
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
