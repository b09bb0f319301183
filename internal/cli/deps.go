package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/haleyos/haley/internal/cache"
	"github.com/haleyos/haley/internal/llm"
	"github.com/haleyos/haley/internal/model"
	"github.com/haleyos/haley/internal/modules"
	"github.com/haleyos/haley/internal/store"
	"github.com/haleyos/haley/internal/util"
)

func newHTTPClient(cfg *model.Config) *http.Client {
	return util.NewHTTPClient(cfg.HTTP, cfg.HTTP.Timeout)
}

// newRegistry builds the provider registry. OLLAMA_BASE_URL points every
// ollama provider without an explicit base URL at another host.
func newRegistry(cfg *model.Config) *llm.Registry {
	if base := os.Getenv("OLLAMA_BASE_URL"); base != "" {
		for id, pc := range cfg.Providers {
			if pc.Kind == "ollama" && (pc.BaseURL == "" || pc.BaseURL == model.DefaultProviders()["llama"].BaseURL) {
				pc.BaseURL = base
				cfg.Providers[id] = pc
			}
		}
	}
	return llm.NewRegistry(cfg, logger)
}

// newCall resolves a provider id into a single-shot completion
func newCall(ctx context.Context, cfg *model.Config, provider string) (llm.Call, error) {
	p, err := newRegistry(cfg).Get(ctx, provider)
	if err != nil {
		return nil, err
	}
	return llm.NewCall(p), nil
}

func newModuleClient(cfg *model.Config, noCache bool) *modules.Client {
	opts := modules.Options{
		MatrixURL:      cfg.Modules.MatrixURL,
		LogicEngineURL: cfg.Modules.LogicEngineURL,
		HTTPClient:     util.NewHTTPClient(cfg.HTTP, cfg.Backend.Timeout),
		Metrics:        promMetrics,
		Logger:         logger,
	}
	if cfg.Cache.Enabled && !noCache {
		opts.Cache = cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		opts.CacheTTL = cfg.Cache.DiskTTL
	}
	return modules.NewClient(opts)
}

func openStore(ctx context.Context, cfg *model.Config) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open conversation store: %w", err)
	}
	return s, nil
}

// splitList splits comma separated flag values
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// readInput returns args joined, the content of file, or stdin when the
// only argument is "-"
func readInput(args []string, file string) (string, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", file, err)
		}
		return string(data), nil
	}
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	return strings.Join(args, " "), nil
}
