package recorder

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/MohammedMogeab/anomaly-detector/internal/store"
	"github.com/MohammedMogeab/anomaly-detector/pkg/types"
)

// HAR file structure, reduced to the fields the importer reads.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog holds the archive's entry list.
type HARLog struct {
	Version string     `json:"version"`
	Entries []HAREntry `json:"entries"`
}

// HAREntry is one recorded request/response pair.
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
}

// HARRequest is the request half of an entry.
type HARRequest struct {
	Method   string         `json:"method"`
	URL      string         `json:"url"`
	Headers  []HARNameValue `json:"headers"`
	PostData *HARPostData   `json:"postData,omitempty"`
}

// HARResponse is the response half of an entry.
type HARResponse struct {
	Status  int            `json:"status"`
	Headers []HARNameValue `json:"headers"`
	Content HARContent     `json:"content"`
}

// HARNameValue is a name/value pair.
type HARNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARPostData is the request body.
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARContent is the response body.
type HARContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// ImportHAR loads a HAR archive into a new flow, one baseline request
// per entry, preserving entry order. Entries are not deduplicated: a
// flow is an ordered journey, and repeated calls to the same endpoint
// are part of it.
func ImportHAR(s store.Store, path, name, description string) (*types.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.RecordingError{Op: "read HAR file", Err: err}
	}
	var har HAR
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, &types.RecordingError{Op: "parse HAR file", Err: err}
	}
	if len(har.Log.Entries) == 0 {
		return nil, &types.RecordingError{Op: "import HAR", Err: fmt.Errorf("archive %s has no entries", path)}
	}

	target := har.Log.Entries[0].Request.URL
	flowID, err := s.CreateFlow(name, target, description)
	if err != nil {
		return nil, &types.RecordingError{Op: "create flow", Err: err}
	}

	for i, entry := range har.Log.Entries {
		req := entryToRequest(flowID, entry)
		if _, err := s.AddRequest(req); err != nil {
			return nil, &types.RecordingError{Op: fmt.Sprintf("import entry %d", i), Err: err}
		}
	}
	return s.GetFlow(flowID)
}

func entryToRequest(flowID int64, entry HAREntry) *types.Request {
	req := &types.Request{
		FlowID:          flowID,
		URL:             entry.Request.URL,
		Method:          entry.Request.Method,
		Headers:         nameValuesToMap(entry.Request.Headers),
		ResponseStatus:  entry.Response.Status,
		ResponseHeaders: nameValuesToMap(entry.Response.Headers),
	}

	if entry.Request.PostData != nil && entry.Request.PostData.Text != "" {
		req.Body = []byte(entry.Request.PostData.Text)
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		if _, ok := req.Headers["Content-Type"]; !ok && entry.Request.PostData.MimeType != "" {
			req.Headers["Content-Type"] = entry.Request.PostData.MimeType
		}
	}

	req.ResponseBody = decodeContent(entry.Response.Content)
	req.ResponseContentLength = entry.Response.Content.Size
	if req.ResponseContentLength == 0 {
		req.ResponseContentLength = int64(len(req.ResponseBody))
	}

	if ts, err := time.Parse(time.RFC3339, entry.StartedDateTime); err == nil {
		req.Timestamp = ts
	}
	return req
}

func nameValuesToMap(pairs []HARNameValue) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.Name] = p.Value
	}
	return out
}

func decodeContent(content HARContent) []byte {
	if content.Text == "" {
		return nil
	}
	if content.Encoding == "base64" {
		if decoded, err := base64.StdEncoding.DecodeString(content.Text); err == nil {
			return decoded
		}
	}
	return []byte(content.Text)
}
