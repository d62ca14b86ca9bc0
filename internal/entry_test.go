package internal

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/starford/chatnotes/internal/conversation"
	"github.com/starford/chatnotes/internal/index"
	"github.com/starford/chatnotes/internal/noteservice"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = filepath.Join(t.TempDir(), "vault")
	cfg.Index.Path = filepath.Join(t.TempDir(), "catalog.db")
	return cfg
}

func TestNewApplication_RequiresConfig(t *testing.T) {
	if _, _, err := newApplication(nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestNewApplication_LogsJSON(t *testing.T) {
	var buf bytes.Buffer
	_, logger, err := newApplication([]Option{WithConfig(testConfig(t)), WithLogOutput(&buf)}, nil)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hello")
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("log output = %q", buf.String())
	}
}

func TestBuild_WiresServiceAndCatalog(t *testing.T) {
	cfg := testConfig(t)
	app, logger, err := newApplication([]Option{WithConfig(cfg), WithLogOutput(&bytes.Buffer{})}, nil)
	if err != nil {
		t.Fatal(err)
	}

	c, err := app.build(logger, prometheus.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()

	if c.db == nil || c.metrics == nil {
		t.Fatal("catalog and metrics should be enabled by default")
	}
	if c.gateway.Model() != cfg.LLM.Model {
		t.Errorf("model = %q", c.gateway.Model())
	}

	res, err := c.svc.SaveRaw(context.Background(), noteservice.Request{
		Project:      "Math",
		Conversation: []conversation.Turn{{Role: conversation.RoleUser, Content: "What is a vector?"}},
	})
	if err != nil {
		t.Fatalf("SaveRaw: %v", err)
	}
	if !strings.HasPrefix(res.File, cfg.Vault.Path) {
		t.Errorf("file %q outside vault %q", res.File, cfg.Vault.Path)
	}

	list, err := c.svc.ListNotes(context.Background(), index.ListFilter{Project: "Math"})
	if err != nil || list.Total != 1 {
		t.Errorf("catalog = %+v, %v", list, err)
	}
}

func TestBuild_IndexDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Enabled = false
	app, logger, _ := newApplication([]Option{WithConfig(cfg), WithLogOutput(&bytes.Buffer{})}, nil)

	c, err := app.build(logger, nil, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer c.Close()
	if c.db != nil || c.metrics != nil {
		t.Error("catalog and metrics should be off")
	}
}
