// internal/pkg/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	xerrors "soulchat-agent/internal/pkg/errors"

	"github.com/gin-gonic/gin"
)

// Response defines the standard API response format.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Envelope is Response as read off the wire, with Data left undecoded.
type Envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// ErrUnsuccessful is returned by Unwrap when the backend reports success=false.
var ErrUnsuccessful = errors.New("request unsuccessful")

// Failure carries the backend message of a success=false envelope.
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	if f.Message == "" {
		return ErrUnsuccessful.Error()
	}
	return f.Message
}

func (f *Failure) Unwrap() error { return ErrUnsuccessful }

// Unwrap decodes an envelope body into out. A missing success flag is treated
// as success so endpoints that return bare data still decode.
func Unwrap(body []byte, out interface{}) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return err
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		return &Failure{Message: msg}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

// Success sends a successful response with a message and optional data.
func Success(c *gin.Context, status int, message string, data interface{}) {
	if status == 0 {
		status = http.StatusOK
	}

	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Error sends a standardized error response.
func Error(c *gin.Context, code int, message string, err error, data ...interface{}) {
	c.Abort()

	response := Response{
		Success: false,
		Message: message,
	}

	response.Error = xerrors.MessageOrDefault(err, "")

	if len(data) > 0 {
		response.Data = data[0]
	}

	c.JSON(code, response)
}

// ValidationError sends a 400 Bad Request response for invalid input.
func ValidationError(c *gin.Context, message string, err error) {
	Error(c, http.StatusBadRequest, message, err)
}

// Unauthorized sends a 401 Unauthorized response.
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, message, nil)
}

// NotFound sends a 404 Not Found response.
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, nil)
}

// FromError sends err with the status its category maps to.
func FromError(c *gin.Context, message string, err error, data ...interface{}) {
	Error(c, StatusFor(err), message, err, data...)
}

// StatusFor maps an error onto the HTTP status the consumer API reports.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, xerrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, xerrors.ErrNotFound):
		return http.StatusNotFound
	}
	switch xerrors.Category(err) {
	case xerrors.KindAuth:
		return http.StatusUnauthorized
	case xerrors.KindTransient, xerrors.KindRealtime:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
