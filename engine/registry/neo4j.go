package registry

import (
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
	"github.com/yassine-youcefi/rasa-rag-chatbot/pkg/repo"
)

func toProps(d domain.Document) map[string]any {
	return map[string]any{
		"file_id":      d.ID,
		"filename":     d.Filename,
		"status":       string(d.Status),
		"file_path":    d.FilePath,
		"chunks_count": int64(d.ChunksCount),
		"error":        d.Error,
		"created_at":   d.CreatedAt,
		"updated_at":   d.UpdatedAt,
	}
}

func fromRecord(rec *neo4j.Record) (domain.Document, error) {
	p, err := repo.NodeProps(rec)
	if err != nil {
		return domain.Document{}, err
	}
	d := domain.Document{
		ID:        str(p["file_id"]),
		Filename:  str(p["filename"]),
		Status:    domain.Status(str(p["status"])),
		FilePath:  str(p["file_path"]),
		Error:     str(p["error"]),
		CreatedAt: tm(p["created_at"]),
		UpdatedAt: tm(p["updated_at"]),
	}
	if n, ok := p["chunks_count"].(int64); ok {
		d.ChunksCount = int(n)
	}
	if d.ID == "" || !d.Status.Valid() {
		return domain.Document{}, fmt.Errorf("registry: malformed %s node %v", Label, p)
	}
	return d, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func tm(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
