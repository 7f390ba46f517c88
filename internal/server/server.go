// Package server exposes the query engine over HTTP. It accepts single
// and batched GraphQL-style requests, compiles them against the
// variation schema, and writes spec-shaped JSON responses.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/varigraph/varigraph/internal/compiler"
	"github.com/varigraph/varigraph/internal/engine"
	"github.com/varigraph/varigraph/internal/eventbus"
	"github.com/varigraph/varigraph/internal/events"
	"github.com/varigraph/varigraph/internal/reqid"
	"github.com/varigraph/varigraph/internal/schema"
)

// Handler serves the query endpoint.
type Handler struct {
	engine *engine.Engine
	schema *schema.Schema
	opt    Options
}

type Options struct {
	// Timeout bounds each request when its context has no deadline of
	// its own. 0 disables the default.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS is disabled while AllowedOrigins is empty.
	CORS CORSOptions
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

type CORSOptions struct {
	AllowedOrigins []string
}

// New builds the HTTP handler for an engine and its schema.
func New(eng *engine.Engine, s *schema.Schema, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{engine: eng, schema: s, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	w.Header().Set("X-Request-Id", rid)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Method: r.Method, Path: r.URL.Path, Remote: r.RemoteAddr})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Method: r.Method, Path: r.URL.Path, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	req, batch, perr := parseRequest(r, h.opt.MaxBodyBytes)
	if perr != "" {
		status = http.StatusBadRequest
		if perr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(perr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		responses := make([]response, len(batch))
		for i := range batch {
			responses[i] = h.executeOne(ctx, batch[i])
		}
		writeJSON(w, status, responses, h.opt.Pretty)
		return
	}

	writeJSON(w, status, h.executeOne(ctx, req), h.opt.Pretty)
}

// executeOne compiles and runs a single request. Compile failures come
// back as a complete error list with null data; execution failures are
// localized in the partial result.
func (h *Handler) executeOne(ctx context.Context, req Request) response {
	plan, cerrs := compiler.Compile(h.schema, req.Query, req.OperationName, req.Variables)
	if len(cerrs) > 0 {
		errs := make([]engine.Error, len(cerrs))
		for i, e := range cerrs {
			errs[i] = engine.Error{
				Message: e.Message,
				Path:    compilePath(e.Path),
				Kind:    engine.KindCompile,
			}
		}
		return response{Data: nil, Errors: errs}
	}

	start := time.Now()
	eventbus.Publish(ctx, events.QueryStart{Query: req.Query, OperationName: req.OperationName})
	result := h.engine.Execute(ctx, plan)
	eventbus.Publish(ctx, events.QueryFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		Errors:        len(result.Errors),
		Duration:      time.Since(start),
	})
	return response{Data: result.Data, Errors: result.Errors}
}

// Request is the wire form of one query.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   any            `json:"data"`
	Errors []engine.Error `json:"errors,omitempty"`
}

func errorResponse(message string) response {
	return response{Errors: []engine.Error{{Message: message, Kind: engine.KindCompile}}}
}

func compilePath(path []string) engine.Path {
	if len(path) == 0 {
		return nil
	}
	out := make(engine.Path, len(path))
	for i, p := range path {
		out[i] = p
	}
	return out
}

const errBodyTooLargeMessage = "body too large"

func parseRequest(r *http.Request, maxBody int64) (Request, []Request, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return Request{}, nil, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return Request{}, nil, "invalid 'variables' JSON"
			}
		}
		return Request{
			Query:         q,
			OperationName: r.URL.Query().Get("operationName"),
			Variables:     vars,
		}, nil, ""
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return Request{}, nil, "unsupported Content-Type"
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return Request{}, nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return Request{}, nil, errBodyTooLargeMessage
	}

	if len(body) > 0 && body[0] == '[' {
		var batch []Request
		if err := json.Unmarshal(body, &batch); err != nil {
			return Request{}, nil, "invalid JSON"
		}
		if len(batch) == 0 {
			return Request{}, nil, "empty batch"
		}
		return Request{}, batch, ""
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, nil, "invalid JSON"
	}
	if req.Query == "" {
		return Request{}, nil, "missing 'query'"
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, nil, ""
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowAny := false
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			allowAny = true
			allowed = true
		}
		if o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if allowAny {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
