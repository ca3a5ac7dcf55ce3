package router

import "github.com/gin-gonic/gin"

type mount struct {
	root bool
	mod  Module
}

// Registry collects global middleware and modules. Modules added with Add
// are mounted under /api; AddRoot mounts them on the engine root.
type Registry struct {
	Engine      *gin.Engine
	API         *gin.RouterGroup
	middlewares []gin.HandlerFunc
	modules     []mount
}

func NewRegistry(engine *gin.Engine) *Registry {
	return &Registry{Engine: engine}
}

func (r *Registry) Use(mw ...gin.HandlerFunc) {
	r.middlewares = append(r.middlewares, mw...)
}

func (r *Registry) Add(mod Module) {
	r.modules = append(r.modules, mount{mod: mod})
}

func (r *Registry) AddRoot(mod Module) {
	r.modules = append(r.modules, mount{root: true, mod: mod})
}

// RegisterAll applies middleware before creating groups, since gin copies
// handlers into a group when it is created.
func (r *Registry) RegisterAll() {
	if len(r.middlewares) > 0 {
		r.Engine.Use(r.middlewares...)
	}
	r.API = r.Engine.Group("/api")
	for _, m := range r.modules {
		if m.root {
			m.mod.Register(&r.Engine.RouterGroup)
			continue
		}
		m.mod.Register(r.API)
	}
}
