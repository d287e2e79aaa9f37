// -----------------------------------------------------------------------
// alphaworker - Drains the analysis_jobs queue one bounded batch at a time
// -----------------------------------------------------------------------

package main

import (
	"context"
	"os"

	"github.com/ternarybob/arbor"
)

func main() {
	if err := App().Run(context.Background(), os.Args); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("alphaworker failed")
		os.Exit(1)
	}
}
