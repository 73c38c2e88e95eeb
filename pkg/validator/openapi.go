package validator

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	apperrors "ai-bot-network/backend/pkg/errors"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/gin-gonic/gin"
)

// OpenAPIValidator validates requests against an OpenAPI document
type OpenAPIValidator struct {
	swagger *openapi3.T
	router  routers.Router
	mutex   sync.RWMutex
}

// NewOpenAPIValidator creates a validator from an OpenAPI document
func NewOpenAPIValidator(ctx context.Context, doc []byte) (*OpenAPIValidator, error) {
	v := &OpenAPIValidator{}
	if err := v.Load(ctx, doc); err != nil {
		return nil, err
	}
	return v, nil
}

// NewOpenAPIValidatorFromFile creates a validator from a document on disk
func NewOpenAPIValidatorFromFile(ctx context.Context, path string) (*OpenAPIValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	swagger, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI schema from %s: %w", path, err)
	}
	v := &OpenAPIValidator{}
	if err := v.install(ctx, swagger); err != nil {
		return nil, err
	}
	return v, nil
}

// Load replaces the schema in use
func (v *OpenAPIValidator) Load(ctx context.Context, doc []byte) error {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	swagger, err := loader.LoadFromData(doc)
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI schema: %w", err)
	}
	return v.install(ctx, swagger)
}

func (v *OpenAPIValidator) install(ctx context.Context, swagger *openapi3.T) error {
	if err := swagger.Validate(ctx); err != nil {
		return fmt.Errorf("invalid OpenAPI schema: %w", err)
	}

	router, err := gorillamux.NewRouter(swagger)
	if err != nil {
		return fmt.Errorf("error creating OpenAPI router: %w", err)
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.swagger = swagger
	v.router = router
	return nil
}

// Operations lists the operation ids the schema declares
func (v *OpenAPIValidator) Operations() []string {
	v.mutex.RLock()
	defer v.mutex.RUnlock()

	var ids []string
	for _, item := range v.swagger.Paths.Map() {
		for _, op := range item.Operations() {
			if op.OperationID != "" {
				ids = append(ids, op.OperationID)
			}
		}
	}
	return ids
}

// Middleware returns a Gin middleware function that validates requests
// against the schema. Routes the schema does not describe pass through.
func (v *OpenAPIValidator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		v.mutex.RLock()
		router := v.router
		v.mutex.RUnlock()

		route, pathParams, err := router.FindRoute(c.Request)
		if err != nil {
			c.Next()
			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    c.Request,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				MultiError:         false,
			},
		}

		if err := openapi3filter.ValidateRequest(c.Request.Context(), input); err != nil {
			c.Error(apperrors.Wrap(apperrors.ErrValidation, err, describe(err)).WithDetails(err.Error()))
			c.Abort()
			return
		}

		c.Next()
	}
}

func describe(err error) string {
	switch e := err.(type) {
	case *openapi3filter.RequestError:
		if e.Parameter != nil {
			return fmt.Sprintf("invalid parameter %s", e.Parameter.Name)
		}
		if e.RequestBody != nil {
			return "invalid request body"
		}
	case *openapi3filter.SecurityRequirementsError:
		return http.StatusText(http.StatusUnauthorized)
	}
	return "invalid request"
}
