// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package memorycore

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/qdrant/go-client/qdrant"
)

// EpisodicStore is the append-only, cross-session tier. Records
// externalized from working memory (spec.md 4.3's external-storage
// technique) live here; checkpoints are stored through
// state.CheckpointStore, not here.
type EpisodicStore interface {
	Append(ctx context.Context, rec EpisodicRecord) (string, error)
	Search(ctx context.Context, projectID, query string, limit int) ([]EpisodicRecord, error)
	Close() error
}

// EpisodicProviderType selects the backing vector store, mirroring the
// agent/model registries: a small fixed set of known implementations
// resolved by name at startup.
type EpisodicProviderType string

const (
	EpisodicChromem  EpisodicProviderType = "chromem"
	EpisodicQdrant   EpisodicProviderType = "qdrant"
	EpisodicPinecone EpisodicProviderType = "pinecone"
)

// EpisodicConfig configures whichever provider Type names.
type EpisodicConfig struct {
	Type    EpisodicProviderType
	Chromem ChromemEpisodicConfig
	Qdrant  QdrantEpisodicConfig
}

// NewEpisodicStore builds the configured episodic backend. An empty
// Type defaults to the embedded chromem store, which needs no external
// service and is the right default for development and single-node
// deployments.
func NewEpisodicStore(cfg EpisodicConfig) (EpisodicStore, error) {
	switch cfg.Type {
	case "", EpisodicChromem:
		return NewChromemEpisodicStore(cfg.Chromem)
	case EpisodicQdrant:
		return NewQdrantEpisodicStore(cfg.Qdrant)
	case EpisodicPinecone:
		return nil, fmt.Errorf("memorycore: pinecone episodic backend not yet wired, use chromem or qdrant")
	default:
		return nil, fmt.Errorf("memorycore: unknown episodic provider type %q", cfg.Type)
	}
}

// ChromemEpisodicConfig configures the embedded chromem-go backend.
type ChromemEpisodicConfig struct {
	PersistPath string
}

// ChromemEpisodicStore is the zero-config embedded episodic backend,
// used when no external vector database is configured. The orchestrator
// does not run an embedding model itself, so vectors are a cheap
// pre-computed stand-in (content length); this is enough for the
// episodic tier's pointer-lookup use case and keeps the embeddingFunc
// unused, matching how the teacher's chromem provider handles
// pre-computed embeddings.
type ChromemEpisodicStore struct {
	mu  sync.Mutex
	db  *chromem.DB
	col *chromem.Collection
}

func NewChromemEpisodicStore(cfg ChromemEpisodicConfig) (*ChromemEpisodicStore, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, false)
		if err != nil {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	col, err := db.GetOrCreateCollection("episodic", nil, identityEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("memorycore: create episodic collection: %w", err)
	}

	return &ChromemEpisodicStore{db: db, col: col}, nil
}

func (s *ChromemEpisodicStore) Append(ctx context.Context, rec EpisodicRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	doc := chromem.Document{
		ID:      rec.ID,
		Content: rec.Content,
		Metadata: map[string]string{
			"project_id": rec.ProjectID,
		},
		Embedding: pseudoEmbed(rec.Content),
	}
	if err := s.col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return "", fmt.Errorf("memorycore: append episodic record: %w", err)
	}
	return rec.ID, nil
}

func (s *ChromemEpisodicStore) Search(ctx context.Context, projectID, query string, limit int) ([]EpisodicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	if n := s.col.Count(); n < limit {
		limit = n
	}
	if limit == 0 {
		return nil, nil
	}

	where := map[string]string{}
	if projectID != "" {
		where["project_id"] = projectID
	}
	results, err := s.col.QueryEmbedding(ctx, pseudoEmbed(query), limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("memorycore: search episodic store: %w", err)
	}

	out := make([]EpisodicRecord, 0, len(results))
	for _, r := range results {
		out = append(out, EpisodicRecord{
			ID:        r.ID,
			ProjectID: r.Metadata["project_id"],
			Content:   r.Content,
		})
	}
	return out, nil
}

func (s *ChromemEpisodicStore) Close() error { return nil }

// identityEmbeddingFunc is never invoked: every document and query is
// given a pre-computed embedding via pseudoEmbed, but chromem still
// requires a non-nil EmbeddingFunc on the collection.
func identityEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("memorycore: embedding function should not be called, vectors are pre-computed")
}

func pseudoEmbed(text string) []float32 {
	return []float32{float32(len(text))}
}

// QdrantEpisodicConfig configures the external Qdrant backend, used in
// production deployments that want episodic memory shared across
// orchestrator instances.
type QdrantEpisodicConfig struct {
	Host           string
	Port           int
	APIKey         string
	UseTLS         bool
	CollectionName string
}

// QdrantEpisodicStore stores episodic records in a Qdrant collection.
// Vectors here are placeholders (one dimension, content length) since
// the orchestrator does not itself run an embedding model; swapping in
// a real embedder only requires changing how the vector is computed.
type QdrantEpisodicStore struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantEpisodicStore(cfg QdrantEpisodicConfig) (*QdrantEpisodicStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = "episodic"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("memorycore: connect qdrant episodic store at %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &QdrantEpisodicStore{client: client, collection: cfg.CollectionName}, nil
}

func (s *QdrantEpisodicStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     1,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func (s *QdrantEpisodicStore) Append(ctx context.Context, rec EpisodicRecord) (string, error) {
	if err := s.ensureCollection(ctx); err != nil {
		return "", fmt.Errorf("memorycore: ensure qdrant episodic collection: %w", err)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	projectVal, err := qdrant.NewValue(rec.ProjectID)
	if err != nil {
		return "", fmt.Errorf("memorycore: convert project_id payload: %w", err)
	}
	contentVal, err := qdrant.NewValue(rec.Content)
	if err != nil {
		return "", fmt.Errorf("memorycore: convert content payload: %w", err)
	}
	payload := map[string]*qdrant.Value{
		"project_id": projectVal,
		"content":    contentVal,
	}
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(rec.ID),
		Vectors: qdrant.NewVectors(float32(len(rec.Content))),
		Payload: payload,
	}
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         []*qdrant.PointStruct{point},
	}); err != nil {
		return "", fmt.Errorf("memorycore: upsert episodic record: %w", err)
	}
	return rec.ID, nil
}

func (s *QdrantEpisodicStore) Search(ctx context.Context, projectID, query string, limit int) ([]EpisodicRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	searchRequest := &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         []float32{float32(len(query))},
		Limit:          uint64(limit),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if projectID != "" {
		searchRequest.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{
				{
					ConditionOneOf: &qdrant.Condition_Field{
						Field: &qdrant.FieldCondition{
							Key: "project_id",
							Match: &qdrant.Match{
								MatchValue: &qdrant.Match_Keyword{Keyword: projectID},
							},
						},
					},
				},
			},
		}
	}

	result, err := s.client.GetPointsClient().Search(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("memorycore: search episodic store: %w", err)
	}

	out := make([]EpisodicRecord, 0, len(result.Result))
	for _, p := range result.Result {
		rec := EpisodicRecord{ID: p.Id.GetUuid()}
		if v, ok := p.Payload["project_id"]; ok {
			rec.ProjectID = v.GetStringValue()
		}
		if v, ok := p.Payload["content"]; ok {
			rec.Content = v.GetStringValue()
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *QdrantEpisodicStore) Close() error { return nil }
