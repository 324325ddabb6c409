package gatewayserver

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/Apurer/preorder-gateway/internal/shared/errors"
)

// Route is the information for every URI.
type Route struct {
	// Name is the name of this Route.
	Name string
	// Method is the string for the HTTP method. ex) GET, POST etc..
	Method string
	// Pattern is the pattern of the URI.
	Pattern string
	// HandlerFunc is the handler function of this route.
	HandlerFunc gin.HandlerFunc
}

// ApiHandleFunctions groups the handlers served by the router.
type ApiHandleFunctions struct {
	OrderAPI   OrderAPI
	AccountAPI AccountAPI
}

// NewRouter returns a new router with every route registered.
func NewRouter(handleFunctions ApiHandleFunctions, middleware ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(apierrors.Recovery())
	router.Use(middleware...)
	for _, route := range getRoutes(handleFunctions) {
		if route.HandlerFunc == nil {
			route.HandlerFunc = DefaultHandleFunc
		}
		router.Handle(route.Method, route.Pattern, route.HandlerFunc)
	}
	router.NoRoute(respondNoRoute)
	router.NoMethod(respondNoMethod)
	return router
}

// DefaultHandleFunc answers routes without a handler.
func DefaultHandleFunc(c *gin.Context) {
	c.String(http.StatusNotImplemented, "501 not implemented")
}

func getRoutes(handleFunctions ApiHandleFunctions) []Route {
	return []Route{
		{
			"CreateOrder",
			http.MethodPost,
			"/api/orders/create",
			handleFunctions.OrderAPI.CreateOrder,
		},
		{
			"CompleteOrder",
			http.MethodPost,
			"/api/orders/:id/complete",
			handleFunctions.OrderAPI.CompleteOrder,
		},
		{
			"GetProducts",
			http.MethodGet,
			"/api/products",
			handleFunctions.AccountAPI.GetProducts,
		},
		{
			"GetBalance",
			http.MethodGet,
			"/api/balance",
			handleFunctions.AccountAPI.GetBalance,
		},
	}
}
