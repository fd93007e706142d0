package core

// errors.go holds the pipeline error taxonomy and its mapping to
// user-facing messages.
//
// Taxonomy:
//   - tabular.ParseError  - malformed input file, fatal for the session
//   - ErrTableNotFound    - recoverable, caller may offer table creation
//   - MappingError        - fatal until the mapping is corrected
//   - cast failures       - per-cell, aggregated into the UploadResult
//   - insert failures     - per-row/batch, aggregated after split-retry
//
// Parse and mapping errors always abort before any database write.
//
// Error codes, grouped by category, for support reference:
//
//	DB001  - duplicate entry        DB004 - connection refused
//	DB002  - foreign key            DB005 - access denied
//	DB003  - data too long          DB006 - timeout / deadline
//	VAL001 - invalid date           VAL003 - required field empty
//	VAL002 - invalid number         VAL004 - mapping invalid
//	FILE001 - file too large        FILE003 - no file provided
//	FILE002 - malformed file        FILE004 - empty file
//	UPL001 - cancelled              UPL002 - too many uploads
//	UPL003 - session not found
//	TBL001 - table not found        TBL002 - invalid table name
//	ERR000 - fallback
//
// Patterns are matched case-insensitively with strings.Contains; the first
// match wins, so specific patterns come before general ones.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound signals that the target table does not exist. It is not
// necessarily fatal: the caller may choose to create the table.
var ErrTableNotFound = errors.New("table not found")

// ErrUploadNotFound signals an unknown or expired upload session ID.
var ErrUploadNotFound = errors.New("upload not found")

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // what happened
	Action  string `json:"action"`  // what to do about it
	Code    string `json:"code"`    // code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// MySQL constraint and data errors. The driver prefixes messages with
	// "Error NNNN:", so both the number and the text are reliable anchors.
	{"duplicate entry", UserMessage{
		Message: "A row with this key already exists",
		Action:  "Check your file for duplicate key values",
		Code:    "DB001",
	}},
	{"foreign key constraint", UserMessage{
		Message: "A referenced record does not exist",
		Action:  "Upload parent records first",
		Code:    "DB002",
	}},
	{"data too long", UserMessage{
		Message: "A value is too long for its column",
		Action:  "Shorten the value or widen the column",
		Code:    "DB003",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"access denied", UserMessage{
		Message: "Database rejected the configured credentials",
		Action:  "Check the database user and password configuration",
		Code:    "DB005",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller file or a larger batch timeout",
		Code:    "DB006",
	}},
	{"timeout", UserMessage{
		Message: "The operation timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "DB006",
	}},

	// Validation and mapping.
	{"invalid date", UserMessage{
		Message: "An invalid date format was detected",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL001",
	}},
	{"invalid integer", UserMessage{
		Message: "An invalid number format was detected",
		Action:  "Remove currency symbols and use plain digits",
		Code:    "VAL002",
	}},
	{"invalid number", UserMessage{
		Message: "An invalid number format was detected",
		Action:  "Remove currency symbols and use standard decimal format",
		Code:    "VAL002",
	}},
	{"not nullable", UserMessage{
		Message: "A required field is empty",
		Action:  "Fill all required columns or map a different source column",
		Code:    "VAL003",
	}},
	{"mapping for table", UserMessage{
		Message: "The column mapping is incomplete or inconsistent",
		Action:  "Review the column mapping and try again",
		Code:    "VAL004",
	}},

	// File handling.
	{"request body too large", UserMessage{
		Message: "The file exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"file too large", UserMessage{
		Message: "The file exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Choose a CSV or Excel file to upload",
		Code:    "FILE003",
	}},
	{"empty file", UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row and data rows",
		Code:    "FILE004",
	}},
	{"parse ", UserMessage{
		Message: "The file could not be parsed",
		Action:  "Ensure the file is valid CSV or Excel with consistent columns",
		Code:    "FILE002",
	}},

	// Upload session management.
	{"cancelled", UserMessage{
		Message: "The upload was cancelled",
		Action:  "Start a new upload when ready",
		Code:    "UPL001",
	}},
	{"context canceled", UserMessage{
		Message: "The request was cancelled",
		Action:  "Please try again",
		Code:    "UPL001",
	}},
	{"too many concurrent uploads", UserMessage{
		Message: "Too many uploads are in progress",
		Action:  "Wait a moment and try again",
		Code:    "UPL002",
	}},
	{"upload not found", UserMessage{
		Message: "The upload session was not found",
		Action:  "It may have expired; start a new upload",
		Code:    "UPL003",
	}},

	// Tables.
	{"table not found", UserMessage{
		Message: "The target table does not exist",
		Action:  "Check the table name, or enable table creation",
		Code:    "TBL001",
	}},
	{"invalid table name", UserMessage{
		Message: "The table name contains unsupported characters",
		Action:  "Use letters, digits and underscores only",
		Code:    "TBL002",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError translates a technical error into a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action" for display.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}
