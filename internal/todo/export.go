package todo

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ExportSchemaVersion is the only export document version understood.
const ExportSchemaVersion = 1

// exportSchemaURL names the embedded schema inside the compiler.
const exportSchemaURL = "https://tasktrack.local/export.schema.json"

// ExportSchema is the JSON Schema for export documents.
const ExportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["schema_version", "user_id", "exported_at", "tasks"],
  "additionalProperties": false,
  "properties": {
    "schema_version": {"const": 1},
    "user_id": {"type": "string", "pattern": "^[A-Za-z0-9]{3,20}$"},
    "exported_at": {"type": "string", "format": "date-time"},
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["description", "priority", "status", "created_at"],
        "additionalProperties": false,
        "properties": {
          "description": {"type": "string", "minLength": 1, "maxLength": 200, "pattern": "^[^|\\r\\n]*$"},
          "due_date": {"type": "string", "pattern": "^([0-9]{4}-[0-9]{2}-[0-9]{2})?$"},
          "priority": {"enum": ["low", "medium", "high"]},
          "status": {"enum": ["pending", "in_progress", "completed"]},
          "created_at": {"type": "string", "format": "date-time"},
          "completed_at": {"type": "string", "format": "date-time"}
        }
      }
    }
  }
}
`

// Export is the JSON document written by the export command.
type Export struct {
	SchemaVersion int          `json:"schema_version"`
	UserID        string       `json:"user_id"`
	ExportedAt    time.Time    `json:"exported_at"`
	Tasks         []ExportTask `json:"tasks"`

	// raw holds the bytes read by LoadExport; schema validation runs on them.
	raw []byte
}

// ExportTask is the JSON form of a task.
type ExportTask struct {
	Description string     `json:"description"`
	DueDate     string     `json:"due_date,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewExport builds an export document for userID.
func NewExport(userID string, tasks []Task, now time.Time) *Export {
	e := &Export{
		SchemaVersion: ExportSchemaVersion,
		UserID:        userID,
		ExportedAt:    now.UTC().Truncate(time.Second),
		Tasks:         make([]ExportTask, 0, len(tasks)),
	}
	for _, t := range tasks {
		et := ExportTask{
			Description: t.Description,
			DueDate:     t.DueDate,
			Priority:    t.Priority.Key(),
			Status:      t.Status.Key(),
			CreatedAt:   t.CreatedAt.UTC(),
		}
		if !t.CompletedAt.IsZero() {
			completed := t.CompletedAt.UTC()
			et.CompletedAt = &completed
		}
		e.Tasks = append(e.Tasks, et)
	}
	return e
}

// LoadExport reads and parses an export document from path.
func LoadExport(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export file: %w", err)
	}

	var e Export
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("parse export file: %w", err)
	}
	e.raw = data

	return &e, nil
}

// Save writes the export document to path with 2-space indentation.
func (e *Export) Save(path string) error {
	data, err := e.marshal()
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}

	return nil
}

// Encode writes the document to w in the same form as Save.
func (e *Export) Encode(w io.Writer) error {
	data, err := e.marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (e *Export) marshal() ([]byte, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export file: %w", err)
	}
	return append(data, '\n'), nil
}

// ToTasks converts the document back into tasks. Due dates are checked for
// shape only; an imported task may legitimately be past due.
func (e *Export) ToTasks() ([]Task, error) {
	tasks := make([]Task, 0, len(e.Tasks))
	for i, et := range e.Tasks {
		path := fmt.Sprintf("tasks[%d]", i)
		if err := ValidateDescription(et.Description); err != nil {
			return nil, &ValidationError{Field: path + ".description", Err: err}
		}
		priority, err := ParsePriority(et.Priority)
		if err != nil {
			return nil, &ValidationError{Field: path + ".priority", Err: err}
		}
		status, err := ParseStatus(et.Status)
		if err != nil {
			return nil, &ValidationError{Field: path + ".status", Err: err}
		}
		if et.CreatedAt.IsZero() || et.CreatedAt.Unix() < 0 {
			return nil, &ValidationError{Field: path + ".created_at", Err: ErrMissingCreatedAt}
		}
		task := Task{
			Description: et.Description,
			DueDate:     et.DueDate,
			Priority:    priority,
			Status:      status,
			CreatedAt:   truncate(et.CreatedAt),
		}
		if et.CompletedAt != nil {
			task.CompletedAt = truncate(*et.CompletedAt)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Valid      bool
	Errors     []error
	Warnings   []string
	UsedSchema bool // true if JSON Schema validation was performed
}

// Validate checks the document against ExportSchema, falling back to
// minimal structural checks when the schema cannot be compiled.
func (e *Export) Validate() *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}

	schemaResult := validateWithSchema(e)
	result.Warnings = append(result.Warnings, schemaResult.Warnings...)
	if schemaResult.UsedSchema {
		result.UsedSchema = true
		if !schemaResult.Valid {
			result.Valid = false
			result.Errors = append(result.Errors, schemaResult.Errors...)
		}
		return result
	}

	result.Warnings = append(result.Warnings, "JSON Schema validation not available, using minimal checks")
	e.validateMinimal(result)
	return result
}

func (e *Export) validateMinimal(result *ValidationResult) {
	if e.SchemaVersion != ExportSchemaVersion {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{
			Field: "schema_version",
			Err:   fmt.Errorf("expected %d, got %d", ExportSchemaVersion, e.SchemaVersion),
		})
	}
	if e.UserID == "" {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{
			Field: "user_id",
			Err:   fmt.Errorf("missing required field"),
		})
	}
	if e.Tasks == nil {
		result.Valid = false
		result.Errors = append(result.Errors, &ValidationError{
			Field: "tasks",
			Err:   fmt.Errorf("missing required field"),
		})
		return
	}
	if _, err := e.ToTasks(); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err)
	}
}

func validateWithSchema(e *Export) *ValidationResult {
	result := &ValidationResult{
		Valid:    true,
		Errors:   make([]error, 0),
		Warnings: make([]string, 0),
	}

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	if err := compiler.AddResource(exportSchemaURL, strings.NewReader(ExportSchema)); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("invalid export schema: %v", err))
		return result
	}
	schema, err := compiler.Compile(exportSchemaURL)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("invalid export schema: %v", err))
		return result
	}

	result.UsedSchema = true

	// The schema validates generic JSON values, not Go structs. A loaded
	// document is checked as read so missing and unknown keys are seen.
	data := e.raw
	if data == nil {
		var err error
		if data, err = json.Marshal(e); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Errorf("marshal export for validation: %w", err))
			return result
		}
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Errorf("unmarshal export for validation: %w", err))
		return result
	}

	if err := schema.Validate(doc); err != nil {
		result.Valid = false
		appendSchemaErrors(result, err)
	}
	return result
}

func appendSchemaErrors(result *ValidationResult, err error) {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		result.Errors = append(result.Errors, err)
		return
	}
	collectSchemaErrors(result, ve)
}

func collectSchemaErrors(result *ValidationResult, err *jsonschema.ValidationError) {
	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, &ValidationError{
			Field: jsonPointerToPath(err.InstanceLocation),
			Err:   fmt.Errorf("%s", err.Message),
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(result, cause)
	}
}

// jsonPointerToPath turns "/tasks/0/priority" into "tasks[0].priority".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	path := ""
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			path += fmt.Sprintf("[%d]", idx)
			continue
		}
		if path == "" {
			path = part
		} else {
			path += "." + part
		}
	}
	return path
}
