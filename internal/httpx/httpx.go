package httpx

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

// Routes is implemented by every handler that mounts endpoints on the
// HTTP server.
type Routes interface {
	Register(r gin.IRouter)
}

// AsRoutes annotates a handler constructor so the server collects it.
func AsRoutes(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Routes)),
		fx.ResultTags(`group:"routes"`),
	)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func Abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: code, Message: message})
}
