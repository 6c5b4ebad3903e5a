package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"rag-knowledge-platform/internal/logger"
	"rag-knowledge-platform/services"
	"rag-knowledge-platform/utils"
)

const (
	TaskIngestDocument = "document:ingest"
	TaskDeleteDocument = "document:delete"
)

type IngestDocumentPayload struct {
	DocumentID string         `json:"document_id,omitempty"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type DeleteDocumentPayload struct {
	DocumentID string `json:"document_id"`
}

// NewIngestDocumentTask enqueues a document for background chunking,
// embedding and indexing.
func NewIngestDocumentTask(documentID, text string, metadata map[string]any) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestDocumentPayload{
		DocumentID: documentID,
		Text:       text,
		Metadata:   metadata,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

func NewDeleteDocumentTask(documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DeleteDocumentPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskDeleteDocument,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(2*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor handles queued ingestion work by delegating to the RAG
// service.
type TaskProcessor struct {
	rag *services.RAGService
}

func NewTaskProcessor(rag *services.RAGService) *TaskProcessor {
	return &TaskProcessor{rag: rag}
}

func (p *TaskProcessor) IngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	documentID, chunks, err := p.rag.IngestDocument(ctx, payload.DocumentID, payload.Text, payload.Metadata)
	if err != nil {
		// Configuration problems will not fix themselves on retry.
		if utils.IsKind(err, utils.KindInvalidConfiguration) {
			logger.Error("Ingest task rejected", "error", err)
			return errors.Join(err, asynq.SkipRetry)
		}
		return err
	}

	logger.Info("Ingest task complete", "document_id", documentID, "chunks", chunks)
	return nil
}

func (p *TaskProcessor) DeleteDocument(ctx context.Context, t *asynq.Task) error {
	var payload DeleteDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}
	if payload.DocumentID == "" {
		return fmt.Errorf("missing document_id: %w", asynq.SkipRetry)
	}

	removed, err := p.rag.DeleteDocument(ctx, payload.DocumentID)
	if err != nil {
		return err
	}

	logger.Info("Delete task complete", "document_id", payload.DocumentID, "chunks_removed", removed)
	return nil
}
