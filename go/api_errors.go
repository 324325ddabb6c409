package gatewayserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Apurer/preorder-gateway/internal/domains/preorders/adapters/http/mapper"
	apierrors "github.com/Apurer/preorder-gateway/internal/shared/errors"
	"github.com/Apurer/preorder-gateway/internal/shared/result"
)

// MessageInvalidBody is returned when the request body cannot be decoded.
const MessageInvalidBody = "Request body is not valid JSON."

// respondResult writes the envelope with the HTTP status taken from the result.
func respondResult[T any](c *gin.Context, res result.Result[T]) {
	c.JSON(res.StatusCode, mapper.FromResult(res))
}

// respondInvalidBody answers undecodable input with a 400 envelope.
func respondInvalidBody[T any](c *gin.Context) {
	c.JSON(http.StatusBadRequest, mapper.BadRequest[T](MessageInvalidBody))
}

// respondNoRoute maps unknown routes to an RFC 7807 problem.
func respondNoRoute(c *gin.Context) {
	apierrors.Respond(c, apierrors.ErrNotFound.WithDetail("no route for "+c.Request.Method+" "+c.Request.URL.Path))
}

func respondNoMethod(c *gin.Context) {
	apierrors.Respond(c, apierrors.ErrMethodNotAllowed.WithDetail(c.Request.Method+" is not supported on "+c.Request.URL.Path))
}
