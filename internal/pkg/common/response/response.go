package response

// Response is the uniform JSON envelope for the HTTP surface.
type Response struct {
	Detail string `json:"detail,omitempty"`
	Data   any    `json:"data,omitempty"`
}
