package models

import (
	"fmt"
	"strings"
)

// RecordType is the outcome of importing one source dataset.
type RecordType string

const (
	RecordCreated RecordType = "created"
	RecordUpdated RecordType = "updated"
	RecordDeleted RecordType = "deleted"
	RecordErrored RecordType = "errored"
)

// RecordTypes lists the known outcomes in display order.
var RecordTypes = []RecordType{RecordCreated, RecordUpdated, RecordDeleted, RecordErrored}

// ParseRecordType normalizes s; the empty string (or "all") means no filter.
func ParseRecordType(s string) (RecordType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all" {
		return "", nil
	}
	for _, t := range RecordTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown record type %q", s)
}

// Duplication flags another record as a duplicate of the finished one.
type Duplication struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}

// RecordData identifies the imported dataset.
type RecordData struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Title        string        `json:"title"`
	Logs         []string      `json:"logs,omitempty"`
	Duplications []Duplication `json:"duplications,omitempty"`
}

// FinishedRecord is appended once per finish_one event and never mutated.
type FinishedRecord struct {
	Type RecordType `json:"type"`
	Data RecordData `json:"data"`
}
