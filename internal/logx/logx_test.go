package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/canopy/schema"
	"pkt.systems/pslog"
)

func TestWithProviderAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	log := WithProvider(logger, schema.ProviderName("catalog"))
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["provider"] != "catalog" {
		t.Fatalf("expected provider field, got %+v", entry)
	}
}

func TestWithFetchAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	log := WithFetch(logger, schema.FetchChildren, "tree-root-catalog/CDM_Database")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["fetch"] != "children" {
		t.Fatalf("expected fetch field, got %+v", entry)
	}
	if entry["key"] != "tree-root-catalog/CDM_Database" {
		t.Fatalf("expected key field, got %+v", entry)
	}
}

func TestWithSessionNodeAddsFields(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithSessionNode(ctx, "main", "tree-root-catalog")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "main" {
		t.Fatalf("expected session field, got %+v", entry)
	}
	if entry["node"] != "tree-root-catalog" {
		t.Fatalf("expected node field, got %+v", entry)
	}
}

func TestWithSessionSkipsDuplicateMarker(t *testing.T) {
	capture := &logCapture{}
	logger := pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
	ctx := ContextWithSessionLogger(context.Background(), logger.With("session", "main"), "main")
	log := WithSession(ctx, "main")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["session"] != "main" {
		t.Fatalf("expected session field, got %+v", entry)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
