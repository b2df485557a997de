package config

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/conneroisu/widgetsync/internal/logging"
)

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

// Drivers accepted in store.driver.
var Drivers = []string{"memory", "file", "sqlite"}

// ValidationError is one configuration problem with suggestions.
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds errors and warnings from Validate.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// Error joins the error messages so a result can be used as an error cause.
func (vr *ValidationResult) Error() string {
	msgs := make([]string, len(vr.Errors))
	for i := range vr.Errors {
		msgs[i] = vr.Errors[i].Error()
	}
	return strings.Join(msgs, "; ")
}

// String formats every issue with its suggestions.
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	if len(vr.Errors) > 0 {
		builder.WriteString("❌ Validation Errors:\n")
		writeIssues(&builder, vr.Errors)
		builder.WriteString("\n")
	}
	if len(vr.Warnings) > 0 {
		builder.WriteString("⚠️  Validation Warnings:\n")
		writeIssues(&builder, vr.Warnings)
	}

	return builder.String()
}

func writeIssues(b *strings.Builder, issues []ValidationError) {
	for _, issue := range issues {
		fmt.Fprintf(b, "  • %s: %s\n", issue.Field, issue.Message)
		for _, suggestion := range issue.Suggestions {
			fmt.Fprintf(b, "    💡 %s\n", suggestion)
		}
	}
}

// Validate checks a loaded configuration.
func Validate(cfg *Config) *ValidationResult {
	result := &ValidationResult{}

	validateServer(&cfg.Server, result)
	validateStore(&cfg.Store, result)
	validateSocket(&cfg.Socket, result)
	validateLayout(&cfg.Layout, result)
	validateLog(&cfg.Log, result)

	return result
}

func validateServer(s *ServerConfig, result *ValidationResult) {
	if s.Port < 0 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Value:   s.Port,
			Message: fmt.Sprintf("port %d is not in valid range 0-65535", s.Port),
			Suggestions: []string{
				"Port 0 lets the system assign an available port",
			},
		})
	} else if s.Port > 0 && s.Port < 1024 {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "server.port",
			Value:   s.Port,
			Message: "port below 1024 requires elevated privileges",
		})
	}

	if s.Host != "" {
		if err := validateHostname(s.Host); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "server.host",
				Value:   s.Host,
				Message: err.Error(),
				Suggestions: []string{
					"Use 'localhost' for local use",
					"Use '0.0.0.0' to bind to all interfaces",
				},
			})
		}
	}

	for i, pattern := range s.AllowedOrigins {
		if _, err := path.Match(pattern, "localhost"); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   pattern,
				Message: "malformed origin pattern",
				Suggestions: []string{
					"Patterns match the origin host, e.g. 'localhost:*' or '*.example.com'",
				},
			})
		}
		if pattern == "*" {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   fmt.Sprintf("server.allowed_origins[%d]", i),
				Value:   pattern,
				Message: "any web page may open the sync channel",
			})
		}
	}
}

func validateStore(s *StoreConfig, result *ValidationResult) {
	if !slices.Contains(Drivers, s.Driver) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "store.driver",
			Value:   s.Driver,
			Message: fmt.Sprintf("unknown store driver '%s'", s.Driver),
			Suggestions: []string{
				"Available drivers: " + strings.Join(Drivers, ", "),
			},
		})
		return
	}

	if s.Driver != "memory" && s.Path == "" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "store.path",
			Value:   s.Path,
			Message: fmt.Sprintf("the %s driver needs a path", s.Driver),
			Suggestions: []string{
				"Use 'widgets.json' with the file driver",
				"Use 'widgets.db' with the sqlite driver",
			},
		})
	}
	if strings.Contains(filepath.Clean(s.Path), "..") {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "store.path",
			Value:   s.Path,
			Message: "path contains traversal",
		})
	}
}

func validateSocket(s *SocketConfig, result *ValidationResult) {
	if s.URL != "" {
		u, err := url.Parse(s.URL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "socket.url",
				Value:   s.URL,
				Message: "socket url must use ws:// or wss://",
				Suggestions: []string{
					"Example: ws://localhost:8050/socket",
				},
			})
		}
	}
	if s.Rate < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "socket.rate",
			Value:   s.Rate,
			Message: "rate must not be negative",
			Suggestions: []string{
				"Use 0 to disable per-client rate limiting",
			},
		})
	}
	if s.Rate > 0 && s.Burst > 0 && float64(s.Burst) < s.Rate {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "socket.burst",
			Value:   s.Burst,
			Message: "burst below rate drops legitimate bursts of widget updates",
		})
	}
	if s.ReadLimit < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "socket.read_limit",
			Value:   s.ReadLimit,
			Message: "read limit must not be negative",
		})
	}
}

func validateLayout(l *LayoutConfig, result *ValidationResult) {
	if l.Path == "" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "layout.path",
			Value:   l.Path,
			Message: "no layout file, the page starts empty",
		})
		return
	}
	if ext := filepath.Ext(l.Path); ext != ".yml" && ext != ".yaml" {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "layout.path",
			Value:   l.Path,
			Message: "layout files are YAML",
		})
	}
}

func validateLog(l *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(l.Level); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.level",
			Value:   l.Level,
			Message: err.Error(),
			Suggestions: []string{
				"Use one of: debug, info, warn, error",
			},
		})
	}
	if l.Format != "text" && l.Format != "json" {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "log.format",
			Value:   l.Format,
			Message: fmt.Sprintf("unknown log format '%s'", l.Format),
			Suggestions: []string{
				"Use 'text' or 'json'",
			},
		})
	}
}

func validateHostname(host string) error {
	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(host, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}

	if net.ParseIP(host) != nil || host == "localhost" {
		return nil
	}
	if !hostnameRegex.MatchString(host) {
		return fmt.Errorf("invalid hostname format")
	}

	return nil
}
