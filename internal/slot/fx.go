package slot

import (
	"github.com/smallbiznis/parkway/internal/slot/repository"
	"github.com/smallbiznis/parkway/internal/slot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("slot.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
