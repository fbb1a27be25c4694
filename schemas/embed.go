// Package schemas embeds the JSON Schemas of the artifacts written by the CLI.
package schemas

import "embed"

// FS holds every *.schema.json file in this directory
//
//go:embed *.schema.json
var FS embed.FS

const (
	// CalibrationSummary validates the calibrate command's summary artifact
	CalibrationSummary = "calibration_summary.schema.json"
	// ProjectionSummary validates the project command's summary artifact
	ProjectionSummary = "projection_summary.schema.json"
)
