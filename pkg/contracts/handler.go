package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Worker is a long-running component of a service process. Run blocks until
// ctx is done or the component fails.
type Worker interface {
	Run(ctx context.Context) error
}
