// Package validation provides shared parameter validation helpers used by
// taskflow component constructors. All helpers return a
// *errors.ValidationError describing the offending module and field.
package validation
