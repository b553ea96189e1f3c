package semantic

import (
	"context"
	"errors"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

// --- Mocks ---

type mockPoints struct {
	upserted  *pb.UpsertPoints
	upsertErr error
	deleted   *pb.DeletePoints
	deleteErr error
	searched  *pb.SearchPoints
	searchRes *pb.SearchResponse
	searchErr error
}

func (m *mockPoints) Upsert(_ context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.upserted = in
	return &pb.PointsOperationResponse{}, m.upsertErr
}

func (m *mockPoints) Delete(_ context.Context, in *pb.DeletePoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	m.deleted = in
	return &pb.PointsOperationResponse{}, m.deleteErr
}

func (m *mockPoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	m.searched = in
	return m.searchRes, m.searchErr
}

type mockCollections struct {
	existing  []string
	listErr   error
	created   *pb.CreateCollection
	createErr error
	dropped   int
	deleteErr error
}

func (m *mockCollections) List(_ context.Context, _ *pb.ListCollectionsRequest, _ ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	resp := &pb.ListCollectionsResponse{}
	for _, n := range m.existing {
		resp.Collections = append(resp.Collections, &pb.CollectionDescription{Name: n})
	}
	return resp, nil
}

func (m *mockCollections) Create(_ context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	m.created = in
	if m.createErr == nil {
		m.existing = append(m.existing, in.GetCollectionName())
	}
	return &pb.CollectionOperationResponse{Result: m.createErr == nil}, m.createErr
}

func (m *mockCollections) Delete(_ context.Context, in *pb.DeleteCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	m.dropped++
	kept := m.existing[:0]
	for _, n := range m.existing {
		if n != in.GetCollectionName() {
			kept = append(kept, n)
		}
	}
	m.existing = kept
	return &pb.CollectionOperationResponse{Result: true}, nil
}

func sampleChunks() []domain.Chunk {
	return []domain.Chunk{
		{DocID: "doc1", Filename: "a.pdf", Index: 0, Text: "first", Embedding: []float32{1, 0}},
		{DocID: "doc1", Filename: "a.pdf", Index: 1, Text: "second", Embedding: []float32{0, 1}},
	}
}

// --- Collection ---

func TestEnsureCollection(t *testing.T) {
	cols := &mockCollections{existing: []string{"other"}}
	s := NewWithClients(&mockPoints{}, cols, "pdf_documents")
	if err := s.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	params := cols.created.GetVectorsConfig().GetParams()
	if params.GetSize() != 384 || params.GetDistance() != pb.Distance_Cosine {
		t.Fatalf("unexpected params %v", params)
	}

	cols.created = nil
	if err := s.EnsureCollection(context.Background(), 384); err != nil {
		t.Fatalf("second EnsureCollection: %v", err)
	}
	if cols.created != nil {
		t.Fatal("existing collection must not be recreated")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestEnsureCollection_Errors(t *testing.T) {
	s := NewWithClients(&mockPoints{}, &mockCollections{listErr: errors.New("rpc")}, "c")
	if err := s.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected list error")
	}
	s = NewWithClients(&mockPoints{}, &mockCollections{createErr: errors.New("rpc")}, "c")
	if err := s.EnsureCollection(context.Background(), 4); err == nil {
		t.Fatal("expected create error")
	}
}

func TestReset(t *testing.T) {
	cols := &mockCollections{}
	s := NewWithClients(&mockPoints{}, cols, "c")
	if err := s.Reset(context.Background()); err == nil {
		t.Fatal("reset before EnsureCollection should fail")
	}
	_ = s.EnsureCollection(context.Background(), 8)
	if err := s.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if len(cols.existing) != 1 || cols.existing[0] != "c" {
		t.Fatalf("collection not recreated: %v", cols.existing)
	}
	if cols.created.GetVectorsConfig().GetParams().GetSize() != 8 {
		t.Fatal("recreated with wrong size")
	}

	cols.deleteErr = errors.New("rpc")
	if err := s.Reset(context.Background()); err == nil {
		t.Fatal("expected delete error")
	}
}

// --- Points ---

func TestInsert(t *testing.T) {
	pts := &mockPoints{}
	s := NewWithClients(pts, &mockCollections{}, "c")
	if err := s.Insert(context.Background(), sampleChunks()); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if !pts.upserted.GetWait() || len(pts.upserted.GetPoints()) != 2 {
		t.Fatalf("unexpected upsert %v", pts.upserted)
	}
	p := pts.upserted.GetPoints()[1]
	if p.GetId().GetUuid() != PointID("doc1", 1) {
		t.Fatalf("point id = %s", p.GetId().GetUuid())
	}
	pl := p.GetPayload()
	if pl[KeyFileID].GetStringValue() != "doc1" || pl[KeyFilename].GetStringValue() != "a.pdf" ||
		pl[KeyChunkID].GetIntegerValue() != 1 || pl[KeyContent].GetStringValue() != "second" {
		t.Fatalf("unexpected payload %v", pl)
	}
}

func TestInsert_EmptyAndInvalid(t *testing.T) {
	pts := &mockPoints{}
	s := NewWithClients(pts, &mockCollections{}, "c")
	if err := s.Insert(context.Background(), nil); err != nil || pts.upserted != nil {
		t.Fatalf("empty insert should be a no-op: %v", err)
	}
	bad := []domain.Chunk{{DocID: "d", Text: "no vector"}}
	if err := s.Insert(context.Background(), bad); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	pts.upsertErr = errors.New("rpc")
	if err := s.Insert(context.Background(), sampleChunks()); err == nil {
		t.Fatal("expected upsert error")
	}
}

func TestSearch(t *testing.T) {
	payload := func(id, name string, chunk int64, text string) map[string]*pb.Value {
		return map[string]*pb.Value{
			KeyFileID:   stringValue(id),
			KeyFilename: stringValue(name),
			KeyChunkID:  {Kind: &pb.Value_IntegerValue{IntegerValue: chunk}},
			KeyContent:  stringValue(text),
		}
	}
	pts := &mockPoints{searchRes: &pb.SearchResponse{Result: []*pb.ScoredPoint{
		{Score: 0.9, Payload: payload("d1", "a.pdf", 2, "best")},
		{Score: 0.5, Payload: payload("d2", "b.pdf", 0, "next")},
	}}}
	s := NewWithClients(pts, &mockCollections{}, "c")

	hits, err := s.Search(context.Background(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if pts.searched.GetLimit() != 5 || pts.searched.GetCollectionName() != "c" {
		t.Fatalf("unexpected request %v", pts.searched)
	}
	if len(hits) != 2 || hits[0].ID != "d1_2" || hits[0].Filename != "a.pdf" || hits[0].Content != "best" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if hits[0].Score < hits[1].Score {
		t.Fatal("hits not in score order")
	}

	if got, _ := s.Search(context.Background(), []float32{1}, 0); len(got) != 0 {
		t.Fatal("k=0 should return nothing")
	}
	pts.searchErr = errors.New("rpc")
	if _, err := s.Search(context.Background(), []float32{1}, 1); err == nil {
		t.Fatal("expected search error")
	}
}

func TestDeleteByFileID(t *testing.T) {
	pts := &mockPoints{}
	s := NewWithClients(pts, &mockCollections{}, "c")
	if err := s.DeleteByFileID(context.Background(), "doc9"); err != nil {
		t.Fatalf("DeleteByFileID: %v", err)
	}
	cond := pts.deleted.GetPoints().GetFilter().GetMust()[0].GetField()
	if cond.GetKey() != KeyFileID || cond.GetMatch().GetKeyword() != "doc9" {
		t.Fatalf("unexpected filter %v", cond)
	}
	pts.deleteErr = errors.New("rpc")
	if err := s.DeleteByFileID(context.Background(), "doc9"); err == nil {
		t.Fatal("expected error")
	}
}

func TestPointIDIsDeterministic(t *testing.T) {
	if PointID("a", 1) != PointID("a", 1) || PointID("a", 1) == PointID("a", 2) {
		t.Fatal("point ids must be stable and distinct per chunk")
	}
	if ChunkID("a", 3) != "a_3" {
		t.Fatalf("ChunkID = %s", ChunkID("a", 3))
	}
}
