package testhelpers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	. "github.com/onsi/gomega"
)

// TestResponse is the outcome of one API call against the running gateway
type TestResponse struct {
	StatusCode int
	Headers    http.Header
	Body       string
	Duration   time.Duration
	Error      error
}

// APIBody mirrors the JSON envelope every gateway response uses
type APIBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// ExpectNoError checks that the response has no network errors
func ExpectNoError(response *TestResponse) {
	Expect(response).NotTo(BeNil(), "Response should not be nil")
	Expect(response.Error).To(BeNil(), "Request should not have network errors")
}

// ExpectStatus checks the response status code
func ExpectStatus(response *TestResponse, statusCode int) {
	ExpectNoError(response)
	Expect(response.StatusCode).To(Equal(statusCode), "Unexpected status, body: %s", response.Body)
}

// DecodeAPIBody parses the JSON envelope of a response
func DecodeAPIBody(response *TestResponse) APIBody {
	var body APIBody
	Expect(json.Unmarshal([]byte(response.Body), &body)).To(Succeed(), "Body should be JSON: %s", response.Body)
	return body
}

// ReadLines returns the non-empty lines of a log file, or nil when it does not exist yet
func ReadLines(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// LinesContaining filters lines by substring
func LinesContaining(lines []string, substr string) []string {
	var matched []string
	for _, line := range lines {
		if strings.Contains(line, substr) {
			matched = append(matched, line)
		}
	}
	return matched
}
