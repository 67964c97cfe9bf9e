// validate.go checks package.json against what the portal's next steps
// assume: a "dev" script for `npm run dev`, a "start" script for hosted
// deployments, mongoose for the MongoDB connection, and a Node engine
// constraint. Findings are warnings only; the initializer never fails on them.
package pkgjson

import "fmt"

// Warning represents a single validation finding in package.json.
type Warning struct {
	// Field is the JSON field path the finding refers to (e.g., "scripts.dev").
	Field string `json:"field"`

	// Message describes what is missing or unexpected.
	Message string `json:"message"`
}

// String formats the warning for console output.
func (w Warning) String() string {
	return fmt.Sprintf("package.json: %s: %s", w.Field, w.Message)
}

// Validate inspects m and returns its warnings (empty = nothing to report).
func Validate(m *Manifest) []Warning {
	var warnings []Warning
	if m == nil {
		return warnings
	}

	if m.Name == "" {
		warnings = append(warnings, Warning{
			Field:   "name",
			Message: "name is recommended; the project directory name is used instead",
		})
	}

	if !m.HasScript("dev") {
		warnings = append(warnings, Warning{
			Field:   "scripts.dev",
			Message: `no "dev" script; the next-steps command "npm run dev" will fail`,
		})
	}

	if !m.HasScript("start") {
		warnings = append(warnings, Warning{
			Field:   "scripts.start",
			Message: `no "start" script; hosting platforms run "npm start"`,
		})
	}

	if !m.HasDependency("mongoose") {
		warnings = append(warnings, Warning{
			Field:   "dependencies.mongoose",
			Message: "mongoose is not listed; the portal connects to MongoDB through it",
		})
	}

	if m.Engines["node"] == "" {
		warnings = append(warnings, Warning{
			Field:   "engines.node",
			Message: "no Node.js engine constraint declared",
		})
	}

	if m.PackageManager != "" {
		if _, ok := ManagerFromField(m.PackageManager); !ok {
			warnings = append(warnings, Warning{
				Field:   "packageManager",
				Message: fmt.Sprintf("unsupported package manager %q; falling back to lock file detection", m.PackageManager),
			})
		}
	}

	return warnings
}
