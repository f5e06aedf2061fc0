package models

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/gjson"

	"github.com/rizome-dev/researchgo/pkg/errors"
)

// Status is the discriminator of an AnswerResponse
type Status string

const (
	// StatusComplete marks an answer with citations
	StatusComplete Status = "complete"

	// StatusNeedMoreInfo marks a request for a more specific question
	StatusNeedMoreInfo Status = "need_more_info"
)

// Variant enumerates the shapes an AnswerResponse can take
type Variant int

const (
	VariantUnrecognized Variant = iota
	VariantComplete
	VariantNeedMoreInfo
)

// String returns the variant name
func (v Variant) String() string {
	switch v {
	case VariantComplete:
		return "complete"
	case VariantNeedMoreInfo:
		return "need_more_info"
	default:
		return "unrecognized"
	}
}

// QueryRequest is the body sent to the query endpoint
type QueryRequest struct {
	Question string `json:"question"`
}

// CitationID holds a citation identifier, which the service sends either as
// a number or as a string.
type CitationID struct {
	value   string
	numeric bool
}

// NewNumericCitationID creates a numeric citation ID
func NewNumericCitationID(n int64) CitationID {
	return CitationID{value: strconv.FormatInt(n, 10), numeric: true}
}

// NewStringCitationID creates a string citation ID
func NewStringCitationID(s string) CitationID {
	return CitationID{value: s}
}

// String returns the ID as it should be displayed
func (id CitationID) String() string {
	return id.value
}

// IsNumeric reports whether the service sent the ID as a number
func (id CitationID) IsNumeric() bool {
	return id.numeric
}

// MarshalJSON keeps the ID in the JSON type it arrived in
func (id CitationID) MarshalJSON() ([]byte, error) {
	if id.numeric {
		return []byte(id.value), nil
	}
	return json.Marshal(id.value)
}

// UnmarshalJSON accepts a JSON number or string
func (id *CitationID) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	switch res.Type {
	case gjson.Number:
		*id = CitationID{value: res.Raw, numeric: true}
	case gjson.String:
		*id = CitationID{value: res.Str}
	default:
		return fmt.Errorf("citation id must be a number or a string, got %s", res.Type)
	}
	return nil
}

// Citation is a reference attached to a completed answer
type Citation struct {
	ID    CitationID `json:"id"`
	Title string     `json:"title"`
	URL   string     `json:"url"`
}

// CompleteAnswer is the payload of a "complete" response
type CompleteAnswer struct {
	Answer    string
	Citations []Citation
}

// NeedMoreInfo is the payload of a "need_more_info" response
type NeedMoreInfo struct {
	NewQueries []string
}

// AnswerResponse is the tagged payload returned by the answering service.
// At most one of Complete and NeedMoreInfo is set; when neither is, the
// response carries a status this client does not know.
type AnswerResponse struct {
	Status       Status
	Complete     *CompleteAnswer
	NeedMoreInfo *NeedMoreInfo
}

// Variant returns which shape the response has
func (r *AnswerResponse) Variant() Variant {
	switch {
	case r == nil:
		return VariantUnrecognized
	case r.Complete != nil:
		return VariantComplete
	case r.NeedMoreInfo != nil:
		return VariantNeedMoreInfo
	default:
		return VariantUnrecognized
	}
}

// NewCompleteResponse creates a completed answer
func NewCompleteResponse(answer string, citations ...Citation) *AnswerResponse {
	if citations == nil {
		citations = []Citation{}
	}
	return &AnswerResponse{
		Status:   StatusComplete,
		Complete: &CompleteAnswer{Answer: answer, Citations: citations},
	}
}

// NewNeedMoreInfoResponse creates a request for a more specific question
func NewNeedMoreInfoResponse(queries ...string) *AnswerResponse {
	if queries == nil {
		queries = []string{}
	}
	return &AnswerResponse{
		Status:       StatusNeedMoreInfo,
		NeedMoreInfo: &NeedMoreInfo{NewQueries: queries},
	}
}

// MarshalJSON encodes the response in the service's wire shape
func (r AnswerResponse) MarshalJSON() ([]byte, error) {
	switch r.Variant() {
	case VariantComplete:
		citations := r.Complete.Citations
		if citations == nil {
			citations = []Citation{}
		}
		return json.Marshal(struct {
			Status    Status     `json:"status"`
			Answer    string     `json:"answer"`
			Citations []Citation `json:"citations"`
		}{StatusComplete, r.Complete.Answer, citations})
	case VariantNeedMoreInfo:
		queries := r.NeedMoreInfo.NewQueries
		if queries == nil {
			queries = []string{}
		}
		return json.Marshal(struct {
			Status     Status   `json:"status"`
			NewQueries []string `json:"new_queries"`
		}{StatusNeedMoreInfo, queries})
	case VariantUnrecognized:
	}
	return json.Marshal(struct {
		Status Status `json:"status"`
	}{r.Status})
}

// UnmarshalJSON decodes and validates a wire response
func (r *AnswerResponse) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAnswerResponse(data)
	if err != nil {
		return err
	}
	*r = *parsed
	return nil
}

// ParseAnswerResponse validates body against the answer response shape.
// A missing or unknown status is not an error; it yields an unrecognized
// response. Known statuses must carry their fields with the right types.
// Duplicate keys resolve to the last occurrence, as with encoding/json.
func ParseAnswerResponse(body []byte) (*AnswerResponse, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.NewMalformedResponseError("body is not valid JSON", body, nil)
	}

	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.NewMalformedResponseError("body is not a JSON object", body, nil)
	}

	resp := &AnswerResponse{}
	if status := member(doc, "status"); status.Type == gjson.String {
		resp.Status = Status(status.Str)
	}

	switch resp.Status {
	case StatusComplete:
		complete, reason := parseComplete(doc)
		if reason != "" {
			return nil, errors.NewMalformedResponseError(reason, body, nil)
		}
		resp.Complete = complete
	case StatusNeedMoreInfo:
		info, reason := parseNeedMoreInfo(doc)
		if reason != "" {
			return nil, errors.NewMalformedResponseError(reason, body, nil)
		}
		resp.NeedMoreInfo = info
	}

	return resp, nil
}

func parseComplete(doc gjson.Result) (*CompleteAnswer, string) {
	answer := member(doc, "answer")
	if answer.Type != gjson.String {
		return nil, `"complete" response has no string "answer"`
	}

	citations := member(doc, "citations")
	if !citations.IsArray() {
		return nil, `"complete" response has no "citations" array`
	}

	complete := &CompleteAnswer{Answer: answer.Str, Citations: []Citation{}}
	for i, c := range citations.Array() {
		if !c.IsObject() {
			return nil, fmt.Sprintf("citation %d is not an object", i)
		}

		var id CitationID
		if err := id.UnmarshalJSON([]byte(member(c, "id").Raw)); err != nil {
			return nil, fmt.Sprintf("citation %d: %v", i, err)
		}

		title, url := member(c, "title"), member(c, "url")
		if title.Type != gjson.String || url.Type != gjson.String {
			return nil, fmt.Sprintf("citation %d needs string \"title\" and \"url\"", i)
		}

		complete.Citations = append(complete.Citations, Citation{ID: id, Title: title.Str, URL: url.Str})
	}

	return complete, ""
}

func parseNeedMoreInfo(doc gjson.Result) (*NeedMoreInfo, string) {
	queries := member(doc, "new_queries")
	if !queries.IsArray() {
		return nil, `"need_more_info" response has no "new_queries" array`
	}

	info := &NeedMoreInfo{NewQueries: []string{}}
	for i, q := range queries.Array() {
		if q.Type != gjson.String {
			return nil, fmt.Sprintf("new query %d is not a string", i)
		}
		info.NewQueries = append(info.NewQueries, q.Str)
	}

	return info, ""
}

// member returns the last value stored under key in obj. gjson's Get
// stops at the first match.
func member(obj gjson.Result, key string) gjson.Result {
	var last gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.Str == key {
			last = v
		}
		return true
	})
	return last
}
