package router

import "github.com/gin-gonic/gin"

// Module mounts one feature's routes. Registry.Add hands it the /api group,
// Registry.AddRoot the engine root.
type Module interface {
	Register(rg *gin.RouterGroup)
}
