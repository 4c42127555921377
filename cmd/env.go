package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/msi-cli/internal/model"
	"github.com/sells-group/msi-cli/internal/store"
)

// initStore opens the configured store and runs migrations. Callers should
// defer st.Close().
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, cfg.Store)
}

// resolveRun returns the run named by args[0], or the most recent run when
// no argument was given.
func resolveRun(ctx context.Context, st store.Store, args []string) (*model.Run, error) {
	if len(args) > 0 {
		run, err := st.GetRun(ctx, args[0])
		return run, eris.Wrapf(err, "run %s", args[0])
	}
	run, err := st.LatestRun(ctx)
	return run, eris.Wrap(err, "latest run")
}
