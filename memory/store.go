// Package memory implements the hybrid textual + vector retrieval store
// for specifications and completions. The durable text half lives in
// persistence.Store; the vector half is an embedded chromem-go collection,
// grounded on the kadirpekel-hector pack repo's pkg/vector/chromem.go. Both
// are wrapped in a sony/gobreaker circuit breaker, since the memory store
// is the one out-of-process-shaped dependency the core engine treats as
// non-fatal-but-bounded on failure.
package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/sony/gobreaker"

	"github.com/ironleaf/conductor/log"
	"github.com/ironleaf/conductor/persistence"
)

const collectionName = "conductor_memories"

// SearchMode selects which half of the hybrid retrieval contract Retrieve
// exercises.
type SearchMode string

const (
	SearchText     SearchMode = "text"
	SearchSemantic SearchMode = "semantic"
	SearchHybrid   SearchMode = "hybrid"
)

// StoreInput is store()'s argument bag.
type StoreInput struct {
	Content    string
	Type       string
	Tags       []string
	WorkflowID string
	Metadata   map[string]any
}

// StoreResult is store()'s response.
type StoreResult struct {
	Status       string
	ID           string
	VectorStored bool
}

// RetrieveInput is retrieve()'s argument bag.
type RetrieveInput struct {
	Query     string
	Filters   map[string]any
	Limit     int
	Threshold float64
	SearchMode SearchMode
}

// Result is one retrieved memory, annotated with which method found it.
type Result struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Type       string         `json:"type"`
	Tags       []string       `json:"tags"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata"`
	Score      float32        `json:"score"`
	Method     string         `json:"method"`
}

// RetrieveResult is retrieve()'s response.
type RetrieveResult struct {
	Results       []Result
	Count         int
	SearchMethods []string
}

// ErrCircuitOpen is returned when the breaker has tripped and is rejecting
// calls; the rpc layer maps this to error code CIRCUIT_BREAKER_OPEN.
var ErrCircuitOpen = gobreaker.ErrOpenState

// Store is the engine-facing MemoryStore implementation.
type Store struct {
	persist *persistence.Store
	db      *chromem.DB
	col     *chromem.Collection
	breaker *gobreaker.CircuitBreaker

	persistPath string
}

// New opens (or creates) the chromem-go collection persisted under
// persistPath (a directory) and pairs it with persist for the text half of
// retrieval.
func New(persist *persistence.Store, persistPath string) (*Store, error) {
	var db *chromem.DB
	if persistPath != "" {
		dbPath := filepath.Join(persistPath, "vectors.gob")
		loaded, err := chromem.NewPersistentDB(dbPath, false)
		if err != nil {
			log.WarningLog.Printf("memory: no existing vector db at %s, starting fresh: %v", dbPath, err)
			db = chromem.NewDB()
		} else {
			db = loaded
		}
	} else {
		db = chromem.NewDB()
	}

	// chromem-go requires an embedding func even when we supply our own
	// pre-computed vectors on every AddDocuments/QueryEmbedding call; this
	// one is never invoked in that path and only guards against a caller
	// falling back to the text-only chromem APIs by mistake.
	identity := func(_ context.Context, _ string) ([]float32, error) {
		return nil, fmt.Errorf("memory: embedding func should not be invoked; vectors are pre-computed")
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, identity)
	if err != nil {
		return nil, fmt.Errorf("memory: create collection: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "memory-store",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WarningLog.Printf("memory: circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Store{persist: persist, db: db, col: col, breaker: breaker, persistPath: persistPath}, nil
}

// Store persists in both the text store and the vector collection.
// Vector-store failures do not fail the call (VectorStored is false and
// the failure is logged); text-store failures do, and are the ones the
// circuit breaker counts.
func (s *Store) Store(ctx context.Context, in StoreInput) (*StoreResult, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		id := uuid.NewString()
		now := time.Now()

		if err := s.persist.InsertMemory(ctx, &persistence.MemoryRecord{
			ID:         id,
			Content:    in.Content,
			Type:       in.Type,
			Tags:       in.Tags,
			WorkflowID: in.WorkflowID,
			Metadata:   in.Metadata,
			CreatedAt:  now,
		}); err != nil {
			return nil, fmt.Errorf("memory: store text record: %w", err)
		}

		vectorStored := s.storeVector(id, in)
		return &StoreResult{Status: "stored", ID: id, VectorStored: vectorStored}, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result.(*StoreResult), nil
}

func (s *Store) storeVector(id string, in StoreInput) bool {
	strMeta := map[string]string{
		"type":        in.Type,
		"workflow_id": in.WorkflowID,
	}
	doc := chromem.Document{
		ID:        id,
		Content:   in.Content,
		Metadata:  strMeta,
		Embedding: hashEmbed(in.Content),
	}
	if err := s.col.AddDocuments(context.Background(), []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		log.WarningLog.Printf("memory: vector store failed for %s (degraded, non-fatal): %v", id, err)
		return false
	}
	if err := s.persistVectors(); err != nil {
		log.WarningLog.Printf("memory: vector persist failed: %v", err)
	}
	return true
}

func (s *Store) persistVectors() error {
	if s.persistPath == "" {
		return nil
	}
	dbPath := filepath.Join(s.persistPath, "vectors.gob")
	return s.db.Export(dbPath, false, "") //nolint:staticcheck
}

// Retrieve implements the hybrid retrieval contract: text mode does a SQL
// LIKE scan, semantic mode does a cosine-similarity vector query, hybrid
// runs both and merges by ID, preferring the higher score.
func (s *Store) Retrieve(ctx context.Context, in RetrieveInput) (*RetrieveResult, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.retrieve(ctx, in)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return result.(*RetrieveResult), nil
}

func (s *Store) retrieve(ctx context.Context, in RetrieveInput) (*RetrieveResult, error) {
	mode := in.SearchMode
	if mode == "" {
		mode = SearchHybrid
	}

	var methods []string
	byID := map[string]Result{}

	if mode == SearchText || mode == SearchHybrid {
		methods = append(methods, string(SearchText))
		var workflowID, typ string
		if v, ok := in.Filters["workflow_id"].(string); ok {
			workflowID = v
		}
		if v, ok := in.Filters["type"].(string); ok {
			typ = v
		}
		records, err := s.persist.SearchMemoriesText(ctx, in.Query, persistence.MemoryFilter{
			Type: typ, WorkflowID: workflowID, Limit: in.Limit,
		})
		if err != nil {
			return nil, fmt.Errorf("memory: text search: %w", err)
		}
		for _, r := range records {
			byID[r.ID] = Result{
				ID: r.ID, Content: r.Content, Type: r.Type, Tags: r.Tags,
				WorkflowID: r.WorkflowID, Metadata: r.Metadata, Score: 1, Method: "text",
			}
		}
	}

	if mode == SearchSemantic || mode == SearchHybrid {
		methods = append(methods, string(SearchSemantic))
		topK := in.Limit
		if topK <= 0 {
			topK = 20
		}
		if n := s.col.Count(); n < topK {
			topK = n
		}
		if topK > 0 {
			docs, err := s.col.QueryEmbedding(ctx, hashEmbed(in.Query), topK, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("memory: semantic search: %w", err)
			}
			for _, d := range docs {
				if d.Similarity < float32(in.Threshold) {
					continue
				}
				existing, ok := byID[d.ID]
				if ok && existing.Score >= d.Similarity {
					continue
				}
				rec, err := s.persist.GetMemory(ctx, d.ID)
				if err != nil {
					continue
				}
				byID[d.ID] = Result{
					ID: rec.ID, Content: rec.Content, Type: rec.Type, Tags: rec.Tags,
					WorkflowID: rec.WorkflowID, Metadata: rec.Metadata, Score: d.Similarity, Method: "semantic",
				}
			}
		}
	}

	out := make([]Result, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	limit := in.Limit
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return &RetrieveResult{Results: out, Count: len(out), SearchMethods: methods}, nil
}
