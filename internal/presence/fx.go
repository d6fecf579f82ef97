package presence

import (
	"github.com/smallbiznis/parkway/internal/presence/repository"
	"github.com/smallbiznis/parkway/internal/presence/service"
	"go.uber.org/fx"
)

var Module = fx.Module("presence.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
