package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"clinic-records/cachekeys"
	"clinic-records/models"
	"clinic-records/monitoring"
	"clinic-records/schema"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error codes of the RPC envelope.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotSupported = "METHOD_NOT_SUPPORTED"
	CodeConflict           = "CONFLICT"
	CodeInternal           = "INTERNAL_SERVER_ERROR"
)

const maxInputBytes = 1 << 20

type kind int

const (
	kindQuery kind = iota
	kindMutation
)

func (k kind) String() string {
	if k == kindQuery {
		return "query"
	}
	return "mutation"
}

type procedure struct {
	kind kind
	call func(ctx context.Context, raw []byte) (json.RawMessage, error)
}

// ErrorBody is the error half of the envelope.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Issues  []schema.Issue `json:"issues,omitempty"`
}

// RPC dispatches named procedures. Queries are served on GET with the
// input JSON in the "input" query parameter, mutations on POST with the
// input JSON as the body. Successful calls answer
// {"result":{"data":...}}, failures {"error":{...}}.
type RPC struct {
	procs  map[string]procedure
	cache  *ResponseCache
	logger *zap.Logger
}

// NewRPC creates an empty dispatcher. cache may be nil.
func NewRPC(cache *ResponseCache, logger *zap.Logger) *RPC {
	return &RPC{
		procs:  make(map[string]procedure),
		cache:  cache,
		logger: logger,
	}
}

// Query registers a query procedure. When cached is set and the RPC has a
// response cache, results are stored under the procedure's cache key.
func Query[I, O any](r *RPC, name string, cached bool, fn func(context.Context, I) (O, error)) {
	r.procs[name] = procedure{
		kind: kindQuery,
		call: func(ctx context.Context, raw []byte) (json.RawMessage, error) {
			in, err := decodeInput[I](raw)
			if err != nil {
				return nil, err
			}

			// The generation is read before fn so a concurrent
			// invalidation makes the result unreachable.
			var key, gen string
			store := false
			if cached && r.cache != nil {
				key = cachekeys.Key(name, in)
				gen, store = r.cache.Generation(ctx, name, key)
				if store {
					if b, ok := r.cache.Get(ctx, name, key, gen); ok {
						return b, nil
					}
				}
			}

			out, err := fn(ctx, in)
			if err != nil {
				return nil, err
			}
			b, err := json.Marshal(out)
			if err != nil {
				return nil, fmt.Errorf("encode %s output: %w", name, err)
			}
			if store {
				r.cache.Set(ctx, key, gen, b)
			}
			return b, nil
		},
	}
}

// Mutation registers a mutation procedure. After fn succeeds, every cached
// query the mutation can affect is invalidated; touched names the record
// it changed.
func Mutation[I, O any](r *RPC, name string, fn func(context.Context, I) (O, error), touched func(I, O) string) {
	r.procs[name] = procedure{
		kind: kindMutation,
		call: func(ctx context.Context, raw []byte) (json.RawMessage, error) {
			in, err := decodeInput[I](raw)
			if err != nil {
				return nil, err
			}
			out, err := fn(ctx, in)
			if err != nil {
				return nil, err
			}
			if r.cache != nil {
				r.cache.Invalidate(ctx, cachekeys.Mutation{Procedure: name, RecordID: touched(in, out)})
			}
			b, err := json.Marshal(out)
			if err != nil {
				return nil, fmt.Errorf("encode %s output: %w", name, err)
			}
			return b, nil
		},
	}
}

// decodeInput parses and validates a procedure input. Malformed JSON is
// reported as a validation failure of the whole input.
func decodeInput[I any](raw []byte) (I, error) {
	var in I
	if len(raw) == 0 {
		raw = []byte("null")
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, &schema.ValidationError{Issues: []schema.Issue{{Field: "input", Message: "is malformed"}}}
	}
	if id, ok := any(in).(string); ok {
		return in, schema.ValidateID(id)
	}
	return in, schema.Validate(in)
}

// Register mounts the dispatcher on group.
func (r *RPC) Register(group *gin.RouterGroup) {
	group.GET("/:procedure", r.serve(kindQuery))
	group.POST("/:procedure", r.serve(kindMutation))
}

func (r *RPC) serve(method kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("procedure")
		proc, ok := r.procs[name]
		if !ok {
			r.fail(c, name, http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: "no procedure " + name})
			return
		}
		if proc.kind != method {
			r.fail(c, name, http.StatusMethodNotAllowed, ErrorBody{
				Code:    CodeMethodNotSupported,
				Message: fmt.Sprintf("%s is a %s", name, proc.kind),
			})
			return
		}

		var raw []byte
		if method == kindQuery {
			raw = []byte(c.Query("input"))
		} else {
			body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxInputBytes))
			if err != nil {
				r.fail(c, name, http.StatusBadRequest, ErrorBody{Code: CodeBadRequest, Message: "unreadable request body"})
				return
			}
			raw = body
		}

		out, err := proc.call(c.Request.Context(), raw)
		if err != nil {
			status, body := r.errorBody(name, err)
			if status == http.StatusInternalServerError {
				_ = c.Error(err)
			}
			r.fail(c, name, status, body)
			return
		}

		monitoring.ProcedureCalls.WithLabelValues(name, "OK").Inc()
		c.JSON(http.StatusOK, gin.H{"result": gin.H{"data": out}})
	}
}

func (r *RPC) fail(c *gin.Context, name string, status int, body ErrorBody) {
	monitoring.ProcedureCalls.WithLabelValues(name, body.Code).Inc()
	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

// errorBody maps an error to a status and an envelope. Unexpected errors
// are logged and hidden behind a generic message.
func (r *RPC) errorBody(name string, err error) (int, ErrorBody) {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, ErrorBody{Code: CodeBadRequest, Message: verr.Error(), Issues: verr.Issues}
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, ErrorBody{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, models.ErrRecordHasEntries):
		return http.StatusConflict, ErrorBody{Code: CodeConflict, Message: err.Error()}
	}

	r.logger.Error("Procedure failed", zap.String("procedure", name), zap.Error(err))
	return http.StatusInternalServerError, ErrorBody{Code: CodeInternal, Message: "internal server error"}
}
