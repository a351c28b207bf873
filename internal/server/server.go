// Package server exposes the ticket pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path"
	"reflect"
	"strings"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"github.com/ShayCichocki/sprintguardian/internal/agent"
	"github.com/ShayCichocki/sprintguardian/internal/api"
	"github.com/ShayCichocki/sprintguardian/internal/orchestrator"
	"github.com/ShayCichocki/sprintguardian/internal/state"
	"github.com/ShayCichocki/sprintguardian/internal/tickets"
	"github.com/ShayCichocki/sprintguardian/pkg/models"
)

// Config for the HTTP API handler.
type Config struct {
	Service  *orchestrator.Service
	BasePath string
	Auth     AuthConfig
	// CORSOrigins lists allowed origins; empty or "*" allows any.
	CORSOrigins []string
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Version string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"generation_failed"`
	Message string         `json:"message" example:"generate tech_estimate via anthropic: timeout"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type errorEnvelope struct {
	Error apiErrorBody `json:"error"`
}

// apiError models the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the guardian API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("server: service is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	humaDefaults.Do(installHumaDefaults)

	router := chi.NewRouter()
	router.Use(withCORS(cfg.CORSOrigins))
	if strings.TrimSpace(cfg.Auth.JWTSecret) != "" {
		router.Use(newAuthMiddleware(basePath, cfg.Auth))
	}

	hcfg := huma.DefaultConfig("Sprint Guardian API", version)
	hcfg.OpenAPIPath = ""
	hcfg.DocsPath = ""
	humaAPI := humachi.New(router, hcfg)
	group := huma.NewGroup(humaAPI, basePath)

	registerHealth(group, version)
	registerGenerate(group, cfg.Service)
	registerTickets(group, cfg.Service)
	registerRuns(group, cfg.Service)
	if err := registerOpenAPI(router, humaAPI, basePath, cfg.Auth.JWTSecret != ""); err != nil {
		return nil, err
	}

	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics)
	}

	return router, nil
}

var humaDefaults sync.Once

// installHumaDefaults swaps huma's package-level error constructors for ones
// that produce the envelope.
func installHumaDefaults() {
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Request validation errors are plain bad requests.
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps pipeline and storage errors onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, orchestrator.ErrEmptyInput) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	if errors.Is(err, tickets.ErrNotFound) || errors.Is(err, state.ErrRunNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	if errors.Is(err, orchestrator.ErrNoHistory) {
		return newAPIError(http.StatusNotImplemented, "history_disabled", err.Error(), nil)
	}

	details := map[string]any{}
	var se *orchestrator.StageError
	if errors.As(err, &se) {
		details["run_id"] = se.RunID
		details["stage"] = string(se.Stage)
	}

	var gf *api.GenerationFailure
	if errors.As(err, &gf) {
		details["schema"] = gf.Schema
		details["kind"] = string(gf.Kind)
		details["attempts"] = gf.Attempts
		return newAPIError(http.StatusBadGateway, "generation_failed", err.Error(), details)
	}
	var pv *orchestrator.PolicyViolation
	if errors.As(err, &pv) {
		rules := make([]string, 0, len(pv.Violations))
		for _, v := range pv.Violations {
			rules = append(rules, v.String())
		}
		details["violations"] = rules
		return newAPIError(http.StatusUnprocessableEntity, "policy_violation", err.Error(), details)
	}
	var af *agent.AggregationFailure
	if errors.As(err, &af) {
		return newAPIError(http.StatusInternalServerError, "aggregation_failed", err.Error(), details)
	}
	if errors.Is(err, context.Canceled) {
		return newAPIError(499, "client_closed_request", err.Error(), details)
	}

	details["error"] = err.Error()
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", details)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusBadGateway:
		return "bad_gateway"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// registerOpenAPI renders the document once, after every operation is
// registered, and serves the cached bytes.
func registerOpenAPI(r chi.Router, humaAPI huma.API, basePath string, secured bool) error {
	oas := humaAPI.OpenAPI()
	ensureDefaultErrorResponses(oas)
	if secured {
		applyAuthSecurity(oas, basePath)
	}
	spec, err := json.Marshal(oas)
	if err != nil {
		return fmt.Errorf("render openapi document: %w", err)
	}
	r.Get("/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
	return nil
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	var errSchema *huma.Schema
	if oas.Components != nil && oas.Components.Schemas != nil {
		errSchema = oas.Components.Schemas.Schema(reflect.TypeOf(errorEnvelope{}), true, "ApiError")
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {Schema: errSchema},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func registerHealth(api huma.API, version string) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok", "version": version}}, nil
	})
}

func registerGenerate(api huma.API, svc *orchestrator.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "generate-ticket",
		Method:      http.MethodPost,
		Path:        "/generate",
		Summary:     "Turn a brain dump into a groomed ticket",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnprocessableEntity,
			http.StatusInternalServerError,
			http.StatusBadGateway,
		},
	}, func(ctx context.Context, input *struct {
		Body GenerateRequest `json:"body"`
	}) (*GenerateResponse, error) {
		save := true
		if input.Body.Save != nil {
			save = *input.Body.Save
		}
		caller := "anonymous"
		if p, ok := PrincipalFromContext(ctx); ok {
			caller = p.Subject
		}
		result, err := svc.Generate(ctx, input.Body.BrainDump, save)
		if err != nil {
			log.Printf("[server] generate for %s failed: %v", caller, err)
			return nil, handleError(err)
		}
		log.Printf("[server] %s generated run %s", caller, result.RunID)
		return &GenerateResponse{
			RunID: result.RunID,
			Slug:  result.Slug,
			Body:  result.Ticket,
		}, nil
	})
}

func registerTickets(api huma.API, svc *orchestrator.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tickets",
		Method:      http.MethodGet,
		Path:        "/tickets",
		Summary:     "List saved tickets",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []models.FinalTicket `json:"body"`
	}, error) {
		items, err := svc.ListTickets()
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []models.FinalTicket `json:"body"`
		}{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-ticket",
		Method:      http.MethodGet,
		Path:        "/tickets/{slug}",
		Summary:     "Get a saved ticket",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Slug string `path:"slug"`
	}) (*struct {
		Body models.FinalTicket `json:"body"`
	}, error) {
		t, err := svc.GetTicket(input.Slug)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body models.FinalTicket `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-ticket",
		Method:      http.MethodDelete,
		Path:        "/tickets/{summary}",
		Summary:     "Delete a ticket by summary or slug",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Summary string `path:"summary"`
	}) (*struct {
		Body MessageResponse `json:"body"`
	}, error) {
		slug, err := svc.DeleteTicket(ctx, input.Summary)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MessageResponse `json:"body"`
		}{Body: MessageResponse{Message: "deleted ticket " + slug, Slug: slug}}, nil
	})
}

func registerRuns(api huma.API, svc *orchestrator.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List recent pipeline runs",
		Errors:      []int{http.StatusNotImplemented},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" minimum:"1" maximum:"500" default:"20"`
	}) (*struct {
		Body []RunResponse `json:"body"`
	}, error) {
		runs, err := svc.RecentRuns(input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []RunResponse `json:"body"`
		}{Body: mapRuns(runs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{run_id}",
		Summary:     "Get one pipeline run with its stage outputs",
		Errors:      []int{http.StatusNotFound, http.StatusNotImplemented},
	}, func(ctx context.Context, input *struct {
		RunID string `path:"run_id"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		run, err := svc.GetRun(input.RunID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: runResponse(*run, true)}, nil
	})
}
