package domain

import "fmt"

// FieldError wraps a sentinel with the offending field and value.
type FieldError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("validation: %v: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *FieldError) Unwrap() error { return e.Wrapped }

// ValidateSource checks that a source object carries everything an
// ingestion job needs before any work is started.
func ValidateSource(src SourceObject) error {
	if src.ID == "" {
		return &FieldError{Field: "id", Value: src.ID, Wrapped: ErrUnsupportedSource}
	}
	if src.UserID == "" {
		return &FieldError{Field: "user_id", Value: src.UserID, Wrapped: ErrUnsupportedSource}
	}
	if !src.Kind.Valid() {
		return &FieldError{Field: "kind", Value: string(src.Kind), Wrapped: ErrUnsupportedSource}
	}
	if src.Kind == KindVideoLink {
		if src.Location == "" {
			return &FieldError{Field: "location", Value: "", Wrapped: ErrUnsupportedSource}
		}
		return nil
	}
	if src.StoragePath == "" {
		return &FieldError{Field: "storage_path", Value: "", Wrapped: ErrUnsupportedSource}
	}
	return nil
}
