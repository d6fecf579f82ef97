package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/config"
	"github.com/smallbiznis/parkway/internal/observability"
	"github.com/smallbiznis/parkway/internal/occupancy"
	"github.com/smallbiznis/parkway/internal/reservation"
	"github.com/smallbiznis/parkway/internal/scheduler"
	"github.com/smallbiznis/parkway/internal/slot"
	"github.com/smallbiznis/parkway/pkg/db"
	"go.uber.org/fx"
)

// Sweep-only binary. Runs expiry, reconciliation, and orphan recovery
// without serving HTTP. Point several replicas at the same database and
// the redis lease keeps sweeps single-flight across them.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		slot.Module,
		reservation.Module,
		occupancy.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
