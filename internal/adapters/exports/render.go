package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"grimoire/internal/blob"
	"grimoire/internal/core"
	"grimoire/pkg/domain"
)

// Key returns the blob key an export artifact is stored under.
func Key(id string, kind domain.Kind, format Format) string {
	return fmt.Sprintf("exports/%s/%s.%s", id, kind, format)
}

type document struct {
	ID       string          `json:"id"`
	Kind     domain.Kind     `json:"kind"`
	Criteria domain.Criteria `json:"criteria"`
	Count    int             `json:"count"`
	Records  []any           `json:"records"`
}

// Render encodes a derived table in the requested format.
func Render(record Record, format Format, table core.Table) ([]byte, string, error) {
	switch format {
	case FormatJSON:
		doc := document{
			ID:       record.ID,
			Kind:     record.Kind,
			Criteria: record.Criteria,
			Count:    len(table.Rows),
			Records:  make([]any, len(table.Rows)),
		}
		for i, row := range table.Rows {
			doc.Records[i] = row.Record
		}
		payload, err := json.Marshal(doc)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return payload, "application/json", nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(table.Columns); err != nil {
			return nil, "", err
		}
		for _, row := range table.Rows {
			if err := writer.Write(row.Cells); err != nil {
				return nil, "", err
			}
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format %s", format)
	}
}

func (w *Worker) publish(ctx context.Context, record Record, format Format, table core.Table) (Artifact, error) {
	payload, contentType, err := Render(record, format, table)
	if err != nil {
		return Artifact{}, err
	}
	key := Key(record.ID, record.Kind, format)
	info, err := w.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata: map[string]string{
			"export": record.ID,
			"kind":   string(record.Kind),
			"rows":   strconv.Itoa(len(table.Rows)),
		},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact %s: %w", key, err)
	}
	artifact := Artifact{
		Key:         info.Key,
		Format:      format,
		ContentType: contentType,
		SizeBytes:   info.Size,
		Rows:        len(table.Rows),
		URL:         info.URL,
		CreatedAt:   info.LastModified,
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(payload))
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = w.now()
	}
	url, err := w.store.PresignURL(ctx, key, blob.SignedURLOptions{Method: "GET", Expiry: w.urlExpiry})
	switch {
	case err == nil:
		artifact.URL = url
	case errors.Is(err, blob.ErrUnsupported):
	default:
		w.logger.Warn("presign export artifact", "key", key, "error", err)
	}
	return artifact, nil
}
