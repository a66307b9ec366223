package api

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/hbomb79/Reel/pkg/logger"
	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openapiDocument []byte

// requestValidator checks incoming requests against the embedded OpenAPI
// document before they reach a handler. Requests for operations which the
// document does not describe are passed through untouched.
type requestValidator struct {
	router  routers.Router
	options *openapi3filter.Options
}

func newRequestValidator() (*requestValidator, error) {
	doc, err := openapi3.NewLoader().LoadFromData(openapiDocument)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build OpenAPI router: %w", err)
	}

	options := &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc}
	options.WithCustomSchemaErrorFunc(schemaErrorMessage)

	return &requestValidator{router: router, options: options}, nil
}

// mustNewRequestValidator panics if the embedded document is invalid, which
// can only happen if the binary was built with a broken document.
func mustNewRequestValidator() *requestValidator {
	rv, err := newRequestValidator()
	if err != nil {
		panic(err)
	}

	return rv
}

func (v *requestValidator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			if err := v.validate(ec.Request().Context(), ec.Request()); err != nil {
				return err
			}

			return next(ec)
		}
	}
}

func (v *requestValidator) validate(ctx context.Context, request *http.Request) error {
	route, pathParams, err := v.router.FindRoute(request)
	if err != nil {
		var routeErr *routers.RouteError
		if errors.As(err, &routeErr) {
			return nil
		}

		log.Emit(logger.WARNING, "Failed to match %s %s against OpenAPI document: %v\n", request.Method, request.URL.Path, err)
		return nil
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    request,
		PathParams: pathParams,
		Route:      route,
		Options:    v.options,
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		var requestErr *openapi3filter.RequestError
		if errors.As(err, &requestErr) {
			return echo.NewHTTPError(http.StatusBadRequest, requestErrorMessage(requestErr))
		}

		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return nil
}

func requestErrorMessage(err *openapi3filter.RequestError) string {
	if err.Parameter != nil {
		return fmt.Sprintf("parameter '%s' is invalid: %s", err.Parameter.Name, causeOf(err))
	}

	return fmt.Sprintf("JSON body failed validation: %s", causeOf(err))
}

func causeOf(err *openapi3filter.RequestError) string {
	if err.Err != nil {
		return err.Err.Error()
	}

	return err.Reason
}

func schemaErrorMessage(err *openapi3.SchemaError) string {
	if pointer := err.JSONPointer(); len(pointer) > 0 && err.SchemaField != "required" {
		return fmt.Sprintf("'%s' %s", strings.Join(pointer, "."), err.Reason)
	}

	return err.Reason
}
