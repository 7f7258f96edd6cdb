package router

import "github.com/gin-gonic/gin"

// Module registers one feature's routes (auth, profiles, admin, ...) on the /api group.
type Module interface {
	Register(rg *gin.RouterGroup)
}
