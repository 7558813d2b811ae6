package captionapi

// Captions is the success body of POST /caption.
// Both fields are produced by the same server call.
type Captions struct {
	CaptionText   string `json:"captionText" yaml:"captiontext"`
	CaptionArabic string `json:"captionArabic" yaml:"captionarabic"`
}

// ErrorResponse is the body returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Upload is one image sent in the `image` form field.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// FieldName is the multipart field carrying the image bytes.
const FieldName = "image"
