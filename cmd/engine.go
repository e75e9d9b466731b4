package cmd

import (
	"encoding/json"
	"io"

	"github.com/kilianp07/dutysched/app/plugins"
	"github.com/kilianp07/dutysched/config"
	"github.com/kilianp07/dutysched/core/assign"
	"github.com/kilianp07/dutysched/infra/logger"
)

// openEngine builds an engine over the configured storage for one-shot
// commands. The returned func closes the storage.
func openEngine(cfg *config.Config) (*assign.Engine, func() error, error) {
	b, err := plugins.OpenBackend(cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	eng := assign.New(b.Registry, b.Duties, nil, cfg.Engine, assign.WithLogger(logger.New("cli")))
	return eng, b.Close, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
