package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts its routes on a router: domain handlers, health checks and
// the device relay all satisfy it.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
