// internal/catalog/domain.go
package catalog

import "encoding/json"

// Status is the circulation state of an item.
type Status string

const (
	StatusAvailable Status = "available"
	StatusLoaned    Status = "loaned"
	StatusReserved  Status = "reserved"
)

// ParseStatus accepts only the three known statuses.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusAvailable, StatusLoaned, StatusReserved:
		return st, nil
	}
	return "", ErrInvalidData
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	st, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Item represents a book or other catalog record.
type Item struct {
	ID     uint32 `json:"id"`
	Title  string `json:"title"`
	Owner  string `json:"owner"`
	Status Status `json:"status"`
}

// ItemCreatedEvent is emitted when a new item is added.
type ItemCreatedEvent struct {
	ID     uint32 `json:"id"`
	Title  string `json:"title"`
	Owner  string `json:"owner"`
	Status Status `json:"status"`
}

// ItemStatusChangedEvent is emitted on every status overwrite.
type ItemStatusChangedEvent struct {
	ID        uint32    `json:"id"`
	Operation Operation `json:"operation"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
}

const (
	EventItemCreated       = "ItemCreated"
	EventItemStatusChanged = "ItemStatusChanged"
)
