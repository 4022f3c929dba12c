package oracle

import (
	"github.com/crucible-sim/crucible/internal/engine/escalation"
	"github.com/crucible-sim/crucible/internal/engine/generation"
	"github.com/crucible-sim/crucible/internal/engine/impact"
	"github.com/crucible-sim/crucible/internal/engine/scheduler"
)

// The client satisfies every engine-side oracle interface.
var (
	_ escalation.Oracle      = (*Client)(nil)
	_ impact.Oracle          = (*Client)(nil)
	_ generation.Oracle      = (*Client)(nil)
	_ scheduler.Classifier   = (*Client)(nil)
	_ scheduler.CancelOracle = (*Client)(nil)
)
