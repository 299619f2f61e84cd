package events

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTemplate is the disc log line layout used when none is configured
const DefaultTemplate = "{timestamp}\t{context}\t{event}\t{request_id}\t{method}\t{path}\t{remote_addr}\t{response.status_code}\t{duration}"

// TemplateFormatter formats an Event using a template string
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	raw       string   // e.g., "{response.status_code}"
	fieldPath []string // e.g., ["response", "status_code"]
	start     int
	end       int
}

// validFields contains all known placeholder names
var validFields = map[string]bool{
	"timestamp":             true,
	"context":               true,
	"event":                 true,
	"direction":             true,
	"tags":                  true,
	"duration":              true,
	"request_id":            true,
	"method":                true,
	"path":                  true,
	"host":                  true,
	"remote_addr":           true,
	"user_agent":            true,
	"request_size":          true,
	"response.status_code":  true,
	"response.size":         true,
	"response.content_type": true,
}

// NewTemplateFormatter parses and validates the template.
// Returns error if any placeholder is unknown or template is empty.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	placeholders, err := parsePlaceholders(template)
	if err != nil {
		return nil, err
	}

	return &TemplateFormatter{
		template:     template,
		placeholders: placeholders,
	}, nil
}

func parsePlaceholders(template string) ([]placeholder, error) {
	var placeholders []placeholder
	i := 0

	for i < len(template) {
		start := strings.IndexByte(template[i:], '{')
		if start == -1 {
			break
		}
		start += i

		end := strings.IndexByte(template[start:], '}')
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		fieldName := template[start+1 : end]
		if fieldName == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}
		if !validFields[fieldName] {
			return nil, fmt.Errorf("unknown placeholder {%s}", fieldName)
		}

		placeholders = append(placeholders, placeholder{
			raw:       template[start : end+1],
			fieldPath: strings.Split(fieldName, "."),
			start:     start,
			end:       end + 1,
		})

		i = end + 1
	}

	return placeholders, nil
}

// Template returns the original template string
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Format renders the event using the template
func (f *TemplateFormatter) Format(event *Event) string {
	if len(f.placeholders) == 0 {
		return f.template
	}

	var b strings.Builder
	b.Grow(len(f.template) + 64)

	last := 0
	for _, p := range f.placeholders {
		b.WriteString(f.template[last:p.start])
		b.WriteString(fieldValue(event, p.fieldPath))
		last = p.end
	}
	b.WriteString(f.template[last:])

	return b.String()
}

func fieldValue(event *Event, fieldPath []string) string {
	if fieldPath[0] == "response" {
		if event.Response == nil || len(fieldPath) < 2 {
			return "-"
		}
		return responseFieldValue(event.Response, fieldPath[1])
	}
	return topLevelFieldValue(event, fieldPath[0])
}

func topLevelFieldValue(event *Event, field string) string {
	switch field {
	case "timestamp":
		return formatTime(event.Timestamp)
	case "context":
		return formatString(event.Context)
	case "event":
		return formatString(event.Name)
	case "direction":
		return event.Direction.String()
	case "tags":
		return formatString(strings.Join(event.Tags, ","))
	case "duration":
		if event.Response == nil {
			return "-"
		}
		return formatFloat(event.Duration.Seconds())
	}

	req := event.Request
	if req == nil {
		return "-"
	}
	switch field {
	case "request_id":
		return formatString(req.RequestID)
	case "method":
		return formatString(req.Method)
	case "path":
		return formatString(req.Path)
	case "host":
		return formatString(req.Host)
	case "remote_addr":
		return formatString(req.RemoteAddr)
	case "user_agent":
		return formatString(req.UserAgent)
	case "request_size":
		return strconv.Itoa(req.ContentLength)
	default:
		return "-"
	}
}

func responseFieldValue(resp *Response, field string) string {
	switch field {
	case "status_code":
		return strconv.Itoa(resp.StatusCode)
	case "size":
		return strconv.Itoa(resp.ContentLength)
	case "content_type":
		return formatString(resp.ContentType)
	default:
		return "-"
	}
}

var logEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

// formatString quotes and escapes s; empty values render as "-"
func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return "\"" + logEscaper.Replace(s) + "\""
}

// formatFloat formats a float64 with 3 decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

// formatTime formats a time in ISO 8601 format
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
