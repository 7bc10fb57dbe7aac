package api

import (
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

// maxImageBytes caps request bodies; mobile-sized photos fit comfortably.
const maxImageBytes = 10 << 20

func writeBadRequest(c *echo.Context, msg string) error {
	return writeError(c, http.StatusBadRequest, "invalid_request", msg)
}

func writeError(c *echo.Context, status int, errType, msg string) error {
	return c.JSON(status, map[string]any{
		"error": ErrorBody{Type: errType, Message: msg},
	})
}

func newRequestID() string {
	return "req_" + uuid.NewString()
}

// readImageRequest extracts image bytes from a JSON body with a base64
// image field, a multipart form with a "file" part, or a raw body.
func readImageRequest(c *echo.Context) ([]byte, error) {
	r := c.Request()
	contentType := r.Header.Get(echo.HeaderContentType)

	switch {
	case strings.HasPrefix(contentType, echo.MIMEApplicationJSON):
		var req ClassifyRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxImageBytes)).Decode(&req); err != nil {
			return nil, fmt.Errorf("decode request: %w", err)
		}
		if req.Image == "" {
			return nil, fmt.Errorf("missing image field")
		}
		data, err := base64.StdEncoding.DecodeString(req.Image)
		if err != nil {
			return nil, fmt.Errorf("decode base64 image: %w", err)
		}
		return data, nil

	case strings.HasPrefix(contentType, echo.MIMEMultipartForm):
		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, fmt.Errorf("missing file part: %w", err)
		}
		defer func() { _ = file.Close() }()
		return io.ReadAll(io.LimitReader(file, maxImageBytes))

	default:
		return io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	}
}
