package response

import (
	"encoding/json"
	"net/http"
)

// V1Response is the stable envelope returned by every API endpoint
type V1Response struct {
	Success  bool        `json:"success"`
	Messages []string    `json:"messages"`
	Result   interface{} `json:"result"`
}

// WriteResponse will write the result to the client as JSON with HTTP 200
func WriteResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(V1Response{
		Success:  true,
		Messages: []string{},
		Result:   result,
	})
}

// WriteError will write the Error to the client as JSON, using Error.StatusCode as the HTTP status
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	json.NewEncoder(w).Encode(V1Response{
		Success:  false,
		Messages: append([]string{e.Message}, e.Messages...),
		Result:   e.Result,
	})
}
