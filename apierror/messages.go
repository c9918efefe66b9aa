package apierror

import "net/http"

// Default user-facing messages, keyed by status. Status 0 is an unreachable backend.
var defaultMessages = map[int]string{
	0:                              "Unable to reach the server. Check your internet connection.",
	http.StatusBadRequest:          "Invalid request. Please check the data you entered.",
	http.StatusUnauthorized:        "Your session has expired. Please sign in again.",
	http.StatusForbidden:           "You do not have permission to perform this action.",
	http.StatusNotFound:            "Resource not found.",
	http.StatusConflict:            "A resource with these details already exists.",
	http.StatusUnprocessableEntity: "The data provided is not valid.",
	http.StatusInternalServerError: "Internal server error. Please try again later.",
	http.StatusBadGateway:          "The server is unavailable. Please try again.",
	http.StatusServiceUnavailable:  "The service is temporarily unavailable. Please try again later.",
	http.StatusGatewayTimeout:      "The request timed out. Please try again.",
}

// SessionExpiredMessage is shown when 401 recovery fails.
const SessionExpiredMessage = "Your session has expired. Please sign in again."

// DefaultMessage returns the user-facing text for status when the backend sent none.
func DefaultMessage(status int, statusText string) string {
	if msg, ok := defaultMessages[status]; ok {
		return msg
	}
	if status >= 500 && status <= 599 {
		return defaultMessages[http.StatusInternalServerError]
	}
	if statusText == "" {
		statusText = "no description"
	}
	return "Unexpected error: " + statusText
}
