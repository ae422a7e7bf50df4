package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"realtime-collab-be/internal/collab/session"
	"realtime-collab-be/internal/model"
	"realtime-collab-be/internal/pkg/logger"

	"github.com/fatih/color"
	"github.com/google/uuid"
)

// In-process convergence drill: several writers hammer one session from the
// same base version and the run fails if the replicas and checksums diverge.

const (
	writers      = 4
	opsPerWriter = 25
)

type memoryStore struct {
	mu   sync.Mutex
	docs map[uuid.UUID]*model.Document
}

func (s *memoryStore) LoadSnapshot(_ context.Context, id uuid.UUID) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[id], nil
}

func (s *memoryStore) SaveSnapshot(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.Id] = doc.Clone()
	return nil
}

type nullBroadcaster struct{}

func (nullBroadcaster) BroadcastToDocument(uuid.UUID, []byte) {}

func main() {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	cyan := color.New(color.FgCyan)

	bold.Println("=== Collaborative Editing Convergence Simulation ===")

	store := &memoryStore{docs: make(map[uuid.UUID]*model.Document)}
	sysLogger := logger.NewZapLogger("logs/simulation.log", false)
	documentId := uuid.New()

	coord, err := session.NewCoordinator(
		context.Background(), documentId,
		store, nullBroadcaster{}, nil, nil,
		sysLogger, session.Config{QueueDepth: 1024}, nil,
	)
	if err != nil {
		log.Fatalf("failed to open session: %v", err)
	}

	authors := make([]uuid.UUID, writers)
	perms := []model.Permission{model.PermissionRead, model.PermissionEdit}
	var blockId uuid.UUID
	for i := range authors {
		authors[i] = uuid.New()
		ack, err := coord.Join(context.Background(), authors[i], perms)
		if err != nil {
			log.Fatalf("join failed: %v", err)
		}
		blockId = ack.Document.Blocks[0].Id
	}
	cyan.Printf("Session open, %d writers on document %s\n", writers, documentId)

	start := time.Now()
	var wg sync.WaitGroup
	var committed, rejected int64
	var mu sync.Mutex

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(author uuid.UUID, tag string) {
			defer wg.Done()
			for i := 0; i < opsPerWriter; i++ {
				op := &model.Operation{
					Id:       uuid.New(),
					Type:     model.OpInsert,
					AuthorId: author,
					BlockId:  blockId,
					Position: 0,
					Text:     tag,
					// Deliberately stale base to force rebasing.
					BaseVersion: 0,
				}
				_, err := coord.Submit(context.Background(), op)
				mu.Lock()
				if err != nil {
					rejected++
				} else {
					committed++
				}
				mu.Unlock()
			}
		}(authors[w], fmt.Sprintf("[w%d]", w))
	}
	wg.Wait()
	elapsed := time.Since(start)

	doc, err := coord.Document(context.Background())
	if err != nil {
		log.Fatalf("reading final document: %v", err)
	}

	cyan.Printf("Committed %d, rejected %d in %v\n", committed, rejected, elapsed)
	cyan.Printf("Final version %d, checksum %s\n", doc.Version, doc.Checksum)

	want := int64(writers * opsPerWriter)
	if committed == want && doc.Version == want {
		green.Println("CONVERGED: every operation committed exactly once")
	} else {
		red.Printf("DIVERGED: want %d commits, got %d (version %d)\n", want, committed, doc.Version)
	}

	for _, author := range authors {
		if err := coord.Leave(context.Background(), author); err != nil {
			break
		}
	}
	bold.Println("Session drained.")
}
