package validation

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

var (
	// RecordIDPattern допустимый id записи: без ':' и переводов строк, которые
	// участвуют в каноническом представлении манифеста
	RecordIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._/\-]{1,128}$`)

	// RecordTypePattern допустимый тег типа записи
	RecordTypePattern = regexp.MustCompile(`^[a-z0-9._/\-]{1,64}$`)
)

// ValidateRecordID проверяет id записи
func ValidateRecordID(id string) error {
	if id == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if !RecordIDPattern.MatchString(id) {
		return fmt.Errorf("record id %q must be 1-128 characters of letters, digits, '.', '_', '-', '/'", id)
	}
	return nil
}

// ValidateRecordType проверяет тег типа записи
func ValidateRecordType(recordType string) error {
	if recordType == "" {
		return fmt.Errorf("record type cannot be empty")
	}
	if !RecordTypePattern.MatchString(recordType) {
		return fmt.Errorf("record type %q must be 1-64 lowercase characters", recordType)
	}
	return nil
}

// ValidateNodeID проверяет, что id узла является UUID
func ValidateNodeID(nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if _, err := uuid.Parse(nodeID); err != nil {
		return fmt.Errorf("node id %q is not a valid UUID: %w", nodeID, err)
	}
	return nil
}
