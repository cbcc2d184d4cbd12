package errors

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
)

// constraintMessages maps known unique constraints to user-facing messages.
var constraintMessages = map[string]string{
	"students_student_number_key":           "a student with this student number already exists",
	"subjects_code_key":                     "a subject with this code already exists",
	"classes_name_lower_idx":                "a class with this name already exists",
	"users_email_key":                       "a user with this email already exists",
	"class_subjects_class_subject_key":      "this subject is already assigned to the class",
	"grades_student_subject_term_key":       "a grade already exists for this student, subject and term",
	"attendance_student_date_key":           "attendance has already been recorded for this student on this date",
	"evaluations_student_term_key":          "an evaluation already exists for this student and term",
	"bece_results_student_year_subject_key": "a BECE result already exists for this student, year and subject",
	"permissions_role_resource_action_key":  "this permission is already granted to the role",
}

// substringRules mirror the pq codes for drivers or wrappers that only expose the message text.
var substringRules = []struct {
	substr string
	code   string
}{
	{"duplicate key value", pgUniqueViolation},
	{"violates foreign key constraint", pgForeignKeyViolation},
	{"violates not-null constraint", pgNotNullViolation},
	{"violates check constraint", pgCheckViolation},
	{"invalid input syntax", pgInvalidTextRepr},
}

// FromDatabase rewrites persistence errors into user-facing API errors.
// Errors that are already typed pass through unchanged; unknown errors become
// internal errors carrying the fallback message.
func FromDatabase(err error, fallback string) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(err, ErrNotFound.Code, ErrNotFound.Status, ErrNotFound.Message)
	}

	code, constraint := classify(err)
	switch code {
	case pgUniqueViolation:
		msg, ok := constraintMessages[constraint]
		if !ok {
			msg = "a record with these details already exists"
		}
		return Wrap(err, ErrConflict.Code, http.StatusConflict, msg)
	case pgForeignKeyViolation:
		if isReferencedDelete(err) {
			return Wrap(err, ErrConflict.Code, http.StatusConflict, "record is still referenced by other records")
		}
		return Wrap(err, ErrValidation.Code, http.StatusBadRequest, "referenced record does not exist")
	case pgNotNullViolation:
		return Wrap(err, ErrValidation.Code, http.StatusBadRequest, "a required field is missing")
	case pgCheckViolation:
		return Wrap(err, ErrValidation.Code, http.StatusBadRequest, "a value is out of the allowed range")
	case pgInvalidTextRepr:
		return Wrap(err, ErrValidation.Code, http.StatusBadRequest, "invalid identifier or value format")
	}

	if fallback == "" {
		fallback = ErrInternal.Message
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, fallback)
}

func classify(err error) (string, string) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint
	}
	msg := err.Error()
	for _, rule := range substringRules {
		if strings.Contains(msg, rule.substr) {
			return rule.code, constraintFromMessage(msg)
		}
	}
	return "", ""
}

// constraintFromMessage extracts the quoted constraint name from messages such as
// `duplicate key value violates unique constraint "students_student_number_key"`.
func constraintFromMessage(msg string) string {
	idx := strings.Index(msg, "constraint \"")
	if idx < 0 {
		return ""
	}
	rest := msg[idx+len("constraint \""):]
	end := strings.Index(rest, "\"")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

func isReferencedDelete(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return strings.Contains(pqErr.Message, "update or delete on table")
	}
	return strings.Contains(err.Error(), "update or delete on table")
}
