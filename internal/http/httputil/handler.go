package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler is one route group of the API, mounted under /api/v1/<Root()>.
// The engine views only register public routes; private and admin stay empty.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup)
}
