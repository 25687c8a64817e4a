// Package evidence stores condition evidence rows and the documents they
// point at. Documents live in an external document store; the core only
// keeps opaque references.
package evidence

import (
	"time"

	id "dealflow/pkg/domain"
)

// Kind distinguishes the artifact shape behind an evidence row.
type Kind string

const (
	KindFile Kind = "file"
	KindLink Kind = "link"
	KindNote Kind = "note"
)

// Evidence links an artifact to a condition. Many evidence rows may point
// at one condition.
type Evidence struct {
	ID          id.EvidenceID  `json:"id"`
	ConditionID id.ConditionID `json:"condition_id"`
	Kind        Kind           `json:"kind"`
	Ref         string         `json:"ref"`
	Note        string         `json:"note,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	CreatedBy   id.UserID      `json:"created_by,omitempty"`
}

// Document is raw content handed to the document store.
type Document struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"-"`
}
