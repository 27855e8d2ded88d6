package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/MohammedMogeab/anomaly-detector/internal/replay"
	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// plannedRequest is one operation from an OpenAPI document, resolved to
// a concrete URL.
type plannedRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

// CaptureFromOpenAPI loads an OpenAPI document, derives one request per
// declared operation, executes each against the live target and records
// request plus response as a baseline flow. Operations whose baseline
// capture fails at the transport level are recorded with status 0 so the
// gap is visible in the flow.
func CaptureFromOpenAPI(ctx context.Context, s store.Store, client *replay.Client, specPath, baseURL, name string) (*types.Flow, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, &types.RecordingError{Op: "load OpenAPI document", Err: err}
	}

	if baseURL == "" && len(doc.Servers) > 0 {
		baseURL = doc.Servers[0].URL
	}
	if baseURL == "" {
		return nil, &types.RecordingError{Op: "capture baseline", Err: fmt.Errorf("no base URL given and document %s declares no servers", specPath)}
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	planned := planRequests(doc, baseURL)
	if len(planned) == 0 {
		return nil, &types.RecordingError{Op: "capture baseline", Err: fmt.Errorf("document %s declares no operations", specPath)}
	}

	flowID, err := s.CreateFlow(name, baseURL, "Baseline captured from "+specPath)
	if err != nil {
		return nil, &types.RecordingError{Op: "create flow", Err: err}
	}

	for _, plan := range planned {
		req := &types.Request{
			FlowID:  flowID,
			URL:     plan.URL,
			Method:  plan.Method,
			Headers: plan.Headers,
			Body:    plan.Body,
		}
		resp, err := client.Do(ctx, plan.Method, plan.URL, plan.Headers, plan.Body)
		if err != nil {
			req.ResponseStatus = 0
			req.ResponseBody = []byte(err.Error())
			req.Timestamp = time.Now().UTC()
		} else {
			req.ResponseStatus = resp.StatusCode
			req.ResponseHeaders = resp.Headers
			req.ResponseBody = resp.Body
			req.ResponseContentLength = resp.ContentLength
			req.Timestamp = resp.Timestamp
		}
		if _, err := s.AddRequest(req); err != nil {
			return nil, &types.RecordingError{Op: "record baseline request", Err: err}
		}
	}
	return s.GetFlow(flowID)
}

// planRequests derives one concrete request per operation, in sorted
// path order so capture is deterministic.
func planRequests(doc *openapi3.T, baseURL string) []plannedRequest {
	paths := make([]string, 0, doc.Paths.Len())
	for path := range doc.Paths.Map() {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	methodOrder := []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

	var planned []plannedRequest
	for _, path := range paths {
		item := doc.Paths.Value(path)
		ops := map[string]*openapi3.Operation{
			"GET": item.Get, "POST": item.Post, "PUT": item.Put, "PATCH": item.Patch,
			"DELETE": item.Delete, "HEAD": item.Head, "OPTIONS": item.Options,
		}
		for _, method := range methodOrder {
			op := ops[method]
			if op == nil {
				continue
			}
			planned = append(planned, plannedRequest{
				Method:  method,
				URL:     baseURL + resolvePath(path, item.Parameters, op.Parameters),
				Headers: requestHeaders(op),
				Body:    requestBody(op),
			})
		}
	}
	return planned
}

// resolvePath substitutes every {param} placeholder with the parameter's
// example, default, or "1" when neither is declared.
func resolvePath(path string, pathParams, opParams openapi3.Parameters) string {
	values := map[string]string{}
	for _, params := range []openapi3.Parameters{pathParams, opParams} {
		for _, ref := range params {
			p := ref.Value
			if p == nil || p.In != openapi3.ParameterInPath {
				continue
			}
			values[p.Name] = parameterExample(p)
		}
	}
	for name, value := range values {
		path = strings.ReplaceAll(path, "{"+name+"}", value)
	}
	return path
}

func parameterExample(p *openapi3.Parameter) string {
	if p.Example != nil {
		return fmt.Sprintf("%v", p.Example)
	}
	if p.Schema != nil && p.Schema.Value != nil {
		schema := p.Schema.Value
		if schema.Example != nil {
			return fmt.Sprintf("%v", schema.Example)
		}
		if schema.Default != nil {
			return fmt.Sprintf("%v", schema.Default)
		}
	}
	return "1"
}

func requestHeaders(op *openapi3.Operation) map[string]string {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	if content.Get("application/json") != nil {
		return map[string]string{"Content-Type": "application/json"}
	}
	contentTypes := make([]string, 0, len(content))
	for contentType := range content {
		contentTypes = append(contentTypes, contentType)
	}
	sort.Strings(contentTypes)
	if len(contentTypes) > 0 {
		return map[string]string{"Content-Type": contentTypes[0]}
	}
	return nil
}

// requestBody serializes a JSON request body example when one is declared.
func requestBody(op *openapi3.Operation) []byte {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	media := op.RequestBody.Value.Content.Get("application/json")
	if media == nil {
		return nil
	}
	if media.Example != nil {
		if data, err := json.Marshal(media.Example); err == nil {
			return data
		}
	}
	if media.Schema != nil && media.Schema.Value != nil && media.Schema.Value.Example != nil {
		if data, err := json.Marshal(media.Schema.Value.Example); err == nil {
			return data
		}
	}
	return nil
}
