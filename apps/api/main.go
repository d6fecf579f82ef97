package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/parkway/internal/clock"
	"github.com/smallbiznis/parkway/internal/config"
	"github.com/smallbiznis/parkway/internal/migration"
	"github.com/smallbiznis/parkway/internal/observability"
	"github.com/smallbiznis/parkway/internal/server"
	"github.com/smallbiznis/parkway/pkg/db"
	"go.uber.org/fx"
)

// API-only binary. Expired reservations are swept by the scheduler
// binary, so this process stays stateless and scales horizontally.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
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
