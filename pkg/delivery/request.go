package delivery

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dmitrymomot/postbox/pkg/validator"
)

// MaxAttachmentSize caps a single decoded attachment.
const MaxAttachmentSize = 10 << 20

// Request asks for one document to be delivered to one recipient.
type Request struct {
	DocumentData  map[string]any    `json:"documentData"`
	Metadata      map[string]any    `json:"metadata,omitempty"`
	Recipient     string            `json:"recipient" validate:"required,email"`
	DocumentType  DocumentType      `json:"documentType" validate:"required"`
	DocumentID    string            `json:"documentId,omitempty" validate:"max=128"`
	RecipientName string            `json:"recipientName,omitempty" validate:"max=256"`
	CustomMessage string            `json:"customMessage,omitempty" validate:"max=4000"`
	Attachments   []AttachmentInput `json:"attachments,omitempty" validate:"max=10,dive"`
}

// AttachmentInput is a caller-provided file, base64 encoded.
type AttachmentInput struct {
	Filename    string `json:"filename" validate:"required,max=255"`
	Content     string `json:"content" validate:"required,base64"`
	ContentType string `json:"contentType,omitempty"`
}

// Validate checks the request shape and the document type.
func (r Request) Validate() error {
	if err := validator.Struct(r); err != nil {
		return errors.Join(ErrInvalidRequest, err)
	}
	if !r.DocumentType.Valid() {
		return errors.Join(ErrInvalidRequest, validator.Field("documentType", "is not supported"))
	}
	// Attachment rows are keyed by log and filename.
	seen := make(map[string]struct{}, len(r.Attachments))
	for i, a := range r.Attachments {
		name := filepath.Base(a.Filename)
		if _, ok := seen[name]; ok {
			return errors.Join(ErrInvalidRequest,
				validator.Field(fmt.Sprintf("attachments[%d].filename", i), "is duplicated"))
		}
		seen[name] = struct{}{}
	}
	return nil
}

// decodedAttachment is an attachment ready to archive or embed.
type decodedAttachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

func decodeAttachments(in []AttachmentInput) ([]decodedAttachment, error) {
	out := make([]decodedAttachment, 0, len(in))
	for i, a := range in {
		content, err := base64.StdEncoding.DecodeString(a.Content)
		if err != nil {
			return nil, errors.Join(ErrInvalidRequest,
				validator.Field(fmt.Sprintf("attachments[%d].content", i), "must be base64 encoded"))
		}
		if len(content) > MaxAttachmentSize {
			return nil, errors.Join(ErrInvalidRequest,
				validator.Field(fmt.Sprintf("attachments[%d].content", i), "exceeds maximum size"))
		}
		out = append(out, decodedAttachment{
			Filename:    filepath.Base(a.Filename),
			ContentType: contentType(a.Filename, a.ContentType, content),
			Content:     content,
		})
	}
	return out, nil
}

func contentType(filename, declared string, content []byte) string {
	if declared != "" {
		return declared
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}

// defaultSubject is the log subject before the template subject is known.
func defaultSubject(docType DocumentType, folio string) string {
	if folio == "" {
		folio = "N/A"
	}
	switch docType {
	case DocumentInvoice:
		return "Factura " + folio
	case DocumentDeliveryNote:
		return "Remisión " + folio
	case DocumentPaymentReminder:
		return "Recordatorio de pago " + folio
	}
	return folio
}

func folioOf(r Request) string {
	if v, ok := r.DocumentData["folio"]; ok && v != nil {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			return s
		}
	}
	return r.DocumentID
}

// Job is the queue payload of a delivery. Attachments carry either an
// archive key or inline content.
type Job struct {
	EnqueuedAt    time.Time       `json:"enqueuedAt"`
	Data          map[string]any  `json:"data,omitempty"`
	LogID         string          `json:"logId"`
	Recipient     string          `json:"recipient"`
	RecipientName string          `json:"recipientName,omitempty"`
	DocumentType  DocumentType    `json:"documentType"`
	DocumentID    string          `json:"documentId,omitempty"`
	CustomMessage string          `json:"customMessage,omitempty"`
	Attachments   []JobAttachment `json:"attachments,omitempty"`
}

// JobAttachment references attachment content for the worker.
type JobAttachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	StorageKey  string `json:"storageKey,omitempty"`
	Content     []byte `json:"content,omitempty"`
	Size        int64  `json:"size"`
}
