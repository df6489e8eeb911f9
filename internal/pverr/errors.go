// Package pverr defines the error kinds raised by the simulation core.
//
// Configuration errors are fatal and returned before any timestep is
// evaluated. Data quality and convergence errors are local to a timestep and
// only surface in aggregate on a simulation result.
package pverr

import (
	"errors"
	"fmt"
)

// DataQualityWarnFraction is the share of excluded timesteps above which a
// result carries a DataQualityError warning.
const DataQualityWarnFraction = 0.05

// ConfigurationError reports an invalid module, racking or thermal parameter.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Configf builds a ConfigurationError for field.
func Configf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataQualityError summarises timesteps dropped from a run.
type DataQualityError struct {
	Excluded int
	Total    int
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: %d of %d timesteps excluded (%.1f%%)", e.Excluded, e.Total, 100*e.Fraction())
}

// Fraction returns the excluded share of the run.
func (e *DataQualityError) Fraction() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Excluded) / float64(e.Total)
}

// ConvergenceError is returned when the implicit diode solve does not settle.
type ConvergenceError struct {
	Iterations int
	Residual   float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence: no solution after %d iterations (residual %.3g)", e.Iterations, e.Residual)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsConvergence reports whether err wraps a ConvergenceError.
func IsConvergence(err error) bool {
	var ce *ConvergenceError
	return errors.As(err, &ce)
}
