package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/postnome/postnome/internal/importer"
	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/logging"
	"github.com/postnome/postnome/internal/template"
	"github.com/postnome/postnome/internal/transport"
	"github.com/postnome/postnome/internal/workspace"
)

// Step event statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// StepEvent represents a progress event during a run.
type StepEvent struct {
	Index      int
	Step       string
	Resource   string
	Status     string
	StatusCode int
	Duration   time.Duration
	Error      error
}

// StepCallback is called for each step event if set.
type StepCallback func(event StepEvent)

// StepResult records what one step produced.
type StepResult struct {
	Name       string
	StatusCode int
	Body       string
	Result     string
	ImportedTo string
}

// RunResult is the outcome of a request run.
type RunResult struct {
	RequestID string
	Steps     []StepResult
	// Results maps "stepN" to the value later steps see for that step.
	Results map[string]string
}

// ResultKey is the context key under which the index-th step's result is
// visible to later steps.
func ResultKey(index int) string {
	return "step" + strconv.Itoa(index+1)
}

// Run executes a request.
func (e *Engine) Run(ctx context.Context, requestID string, fields map[string]string) (*RunResult, error) {
	return e.RunWithCallback(ctx, requestID, fields, nil)
}

// RunWithCallback executes the steps of a request in order with progress
// event callbacks. Tokens resolve against the request fields, then earlier
// step results, then the variable store. A failing step aborts the run;
// variables written by earlier steps are kept.
func (e *Engine) RunWithCallback(ctx context.Context, requestID string, fields map[string]string, callback StepCallback) (*RunResult, error) {
	emit := func(event StepEvent) {
		if callback != nil {
			callback(event)
		}
	}

	req, ok := e.ws.Request(requestID)
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, ir.ErrNotFound)
	}
	logging.Debug("running request", "request", req.Name, "steps", len(req.Steps))

	fieldCtx := template.MapContext{}
	for k, v := range fields {
		if v != "" {
			fieldCtx[k] = v
		}
	}
	results := template.MapContext{}
	contexts := []template.Context{fieldCtx, results, nonEmpty{e.ws.Variables()}}

	out := &RunResult{RequestID: req.ID, Results: results}
	for i, step := range req.Steps {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("run cancelled: %w", err)
		}

		res, ok := e.ws.Resource(step.ResourceID)
		if !ok {
			err := fmt.Errorf("step %q resource %s: %w", step.Name, step.ResourceID, ir.ErrNotFound)
			emit(StepEvent{Index: i, Step: step.Name, Status: StatusFailed, Error: err})
			return out, err
		}

		start := time.Now()
		emit(StepEvent{Index: i, Step: step.Name, Resource: res.Name, Status: StatusStarted})

		data := res.Data
		if step.OverrideData {
			if v, ok := lookup(contexts, ir.OverrideField(req.Name, step.Name)); ok {
				data = v
			}
		}
		call := e.buildCall(res, data, contexts)

		resp, err := e.transport.Do(ctx, call)
		if err != nil {
			err = fmt.Errorf("step %d (%s) of %q: %w: %v", i+1, step.Name, req.Name, ir.ErrTransport, err)
			emit(StepEvent{Index: i, Step: step.Name, Resource: res.Name, Status: StatusFailed, Duration: time.Since(start), Error: err})
			logging.Error("aborting request", "request", req.Name, "step", step.Name, "error", err)
			return out, err
		}

		if resp.Status >= 400 {
			err := fmt.Errorf("step %d (%s) of %q: %w: status %d", i+1, step.Name, req.Name, ir.ErrTransport, resp.Status)
			emit(StepEvent{Index: i, Step: step.Name, Resource: res.Name, Status: StatusFailed, StatusCode: resp.Status, Duration: time.Since(start), Error: err})
			logging.Error("aborting request", "request", req.Name, "step", step.Name, "status", resp.Status)
			return out, err
		}

		outputs, err := e.ws.CaptureResponse(res.ID, resp.Body, resp.Headers, e.opts.OverwriteOutput)
		if err != nil {
			emit(StepEvent{Index: i, Step: step.Name, Resource: res.Name, Status: StatusFailed, StatusCode: resp.Status, Duration: time.Since(start), Error: err})
			return out, err
		}

		sr := StepResult{Name: step.Name, StatusCode: resp.Status, Body: resp.Body}
		var first workspace.Output
		hasFirst := len(outputs) > 0 && len(res.OutputVariableIDs) > 0 && outputs[0].VariableID == res.OutputVariableIDs[0]
		if hasFirst {
			first = outputs[0]
			encoded, err := json.Marshal(first.Value)
			if err != nil {
				return out, fmt.Errorf("encode result of %q: %w", step.Name, err)
			}
			sr.Result = string(encoded)
		} else {
			sr.Result = resp.Body
		}
		results[ResultKey(i)] = sr.Result

		if res.ImportType != "" && e.importer != nil {
			content := resp.Body
			if hasFirst {
				content = first.Value.Text()
			}
			name, _ := template.Contextualize(res.ImportName, contexts, template.Options{Default: e.opts.MissingPlaceholder})
			item := importer.Item{
				Name:     name,
				Type:     res.ImportType,
				Content:  content,
				Metadata: e.metadata(step.MetadataSource, contexts),
			}
			loc, err := e.importer.Import(ctx, item)
			if err != nil {
				// import problems are reported but do not abort the request
				logging.Warn("import failed", "step", step.Name, "type", res.ImportType, "error", err)
			}
			sr.ImportedTo = loc
		}

		out.Steps = append(out.Steps, sr)
		emit(StepEvent{Index: i, Step: step.Name, Resource: res.Name, Status: StatusCompleted, StatusCode: resp.Status, Duration: time.Since(start)})
	}
	return out, nil
}

// Fetch executes a single resource against the variable store and captures
// the response, replacing any previous capture.
func (e *Engine) Fetch(ctx context.Context, resourceID string) (*transport.Response, error) {
	res, ok := e.ws.Resource(resourceID)
	if !ok {
		return nil, fmt.Errorf("resource %s: %w", resourceID, ir.ErrNotFound)
	}
	contexts := []template.Context{nonEmpty{e.ws.Variables()}}
	resp, err := e.transport.Do(ctx, e.buildCall(res, res.Data, contexts))
	if err != nil {
		return nil, fmt.Errorf("fetch %q: %w: %v", res.Name, ir.ErrTransport, err)
	}
	if resp.Status >= 400 {
		return resp, fmt.Errorf("fetch %q: %w: status %d", res.Name, ir.ErrTransport, resp.Status)
	}
	if err := e.ws.Capture(res.ID, resp.Body, resp.Headers, true); err != nil {
		return resp, err
	}
	return resp, nil
}

// buildCall substitutes every templated field of res.
func (e *Engine) buildCall(res *ir.Resource, data string, contexts []template.Context) transport.Call {
	opts := template.Options{Default: e.opts.MissingPlaceholder}
	contextualize := func(s string) string {
		out, missing := template.Contextualize(s, contexts, opts)
		if len(missing) > 0 {
			logging.Debug("unresolved tokens", "resource", res.Name, "tokens", missing)
		}
		return out
	}

	url := contextualize(res.URL)
	if e.opts.LocalhostAlias != "" {
		url = strings.ReplaceAll(url, "localhost", e.opts.LocalhostAlias)
	}
	body := contextualize(data)

	var headers []ir.Header
	hasContentType := false
	for _, h := range res.OrderedHeaders() {
		name := contextualize(h.Name())
		if strings.EqualFold(name, "Content-Length") {
			continue
		}
		if strings.EqualFold(name, "Content-Type") {
			hasContentType = true
		}
		headers = append(headers, ir.NewHeader(name, contextualize(h.Value())))
	}
	if res.Method == workspace.MethodPost {
		headers = append(headers, ir.NewHeader("Content-Length", strconv.Itoa(len(body))))
		if !hasContentType {
			headers = append(headers, ir.NewHeader("Content-Type", "text/plain"))
		}
	}

	return transport.Call{
		Method:  res.Method,
		URL:     url,
		Headers: headers,
		Body:    body,
	}
}

// metadata resolves a step's metadata source: a variable name looked up in
// the run contexts, or the literal text when nothing matches.
func (e *Engine) metadata(source string, contexts []template.Context) string {
	if source == "" {
		return ""
	}
	if v, ok := lookup(contexts, source); ok {
		return v
	}
	out, _ := template.Contextualize(source, contexts, template.Options{Default: e.opts.MissingPlaceholder})
	return out
}

// nonEmpty hides empty values so unfilled variables read as missing.
type nonEmpty struct {
	template.Context
}

func (c nonEmpty) Lookup(key string) (string, bool) {
	v, ok := c.Context.Lookup(key)
	return v, ok && v != ""
}

func lookup(contexts []template.Context, key string) (string, bool) {
	for _, c := range contexts {
		if v, ok := c.Lookup(key); ok {
			return v, true
		}
	}
	return "", false
}

// IsTransportFailure reports whether err aborted a run because a call failed.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ir.ErrTransport)
}
