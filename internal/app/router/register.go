package router

import "github.com/gin-gonic/gin"

// Registrar is implemented by each module that mounts routes.
type Registrar interface{ Register(r *gin.Engine) }

// Central registry of modules to assemble.
var registrars []Registrar

func Register(rs ...Registrar) { registrars = append(registrars, rs...) }

func MountAll(r *gin.Engine) {
	for _, rg := range registrars {
		rg.Register(r)
	}
}

// New builds the gin engine all modules mount on.
func New() *gin.Engine {
	return gin.New()
}
