// Package errors provides examples of structured error handling in pvstream.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/pvstream/pkg/errors"
)

// Example demonstrates basic error creation and wrapping.
func Example() {
	// Create a new error with type
	err := errors.New(errors.ErrorTypeConnection, "failed to fetch pageviews dump")

	// Add context details
	err = err.WithDetail("url", "https://dumps.wikimedia.org/other/pageviews/2025/2025-06/pageviews-20250601-000000.gz").
		WithDetail("status", 503)

	// Print the error
	fmt.Println(err.Error())

	// Output:
	// connection: failed to fetch pageviews dump
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	// Simulate an underlying error
	originalErr := io.ErrUnexpectedEOF

	// Wrap the error with context
	err := errors.Wrap(originalErr, errors.ErrorTypeRead, "failed to read dump line").
		WithDetail("source", "pageviews-20250601-000000.gz").
		WithDetail("line", 48213)

	// Check the error type
	if errors.IsType(err, errors.ErrorTypeRead) {
		fmt.Println("This is a read error")
	}

	// Output:
	// This is a read error
}

// ExampleIsType demonstrates checking error types through wrapping.
func ExampleIsType() {
	parseErr := errors.New(errors.ErrorTypeMissingField, "missing page title").
		WithDetail("field", "page title")
	wrapped := errors.Wrap(parseErr, errors.ErrorTypeInternal, "pipeline stage failed")

	fmt.Printf("Is missing-field error: %v\n", errors.IsType(parseErr, errors.ErrorTypeMissingField))
	fmt.Printf("Wrapped is internal: %v\n", errors.IsType(wrapped, errors.ErrorTypeInternal))
	fmt.Printf("Wrapped is missing-field: %v\n", errors.IsType(wrapped, errors.ErrorTypeMissingField))

	// Output:
	// Is missing-field error: true
	// Wrapped is internal: true
	// Wrapped is missing-field: false
}

// ExampleIsFatal shows the one condition that aborts an encoding run.
func ExampleIsFatal() {
	lineErr := errors.New(errors.ErrorTypeInvalidField, "invalid views count").
		WithDetail("field", "views")
	batchErr := errors.New(errors.ErrorTypeBatchCorruption, "dictionary append failed")

	fmt.Printf("Line error fatal: %v\n", errors.IsFatal(lineErr))
	fmt.Printf("Batch error fatal: %v\n", errors.IsFatal(batchErr))

	// Output:
	// Line error fatal: false
	// Batch error fatal: true
}

// ExampleField extracts the offending field name from a parse error.
func ExampleField() {
	err := errors.New(errors.ErrorTypeInvalidField, "invalid views count").
		WithDetail("field", "views")

	fmt.Println(errors.Field(err))

	// Output:
	// views
}

// ExampleIsRetryable shows how to check if an error is retryable.
func ExampleIsRetryable() {
	tempErr := errors.New(errors.ErrorTypeTimeout, "dump server timed out")
	fatalErr := errors.New(errors.ErrorTypeInternal, "builder state lost")

	if errors.IsRetryable(tempErr) {
		fmt.Println("Timeout error is retryable")
	}

	if !errors.IsRetryable(fatalErr) {
		fmt.Println("Internal error is not retryable")
	}

	// Output:
	// Timeout error is retryable
	// Internal error is not retryable
}
