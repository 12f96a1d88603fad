package pdf

import (
	"bytes"

	"github.com/spherical/scene-converter/internal/domain"
	"github.com/spherical/scene-converter/internal/observability"
)

// LargeDocumentBytes is the size above which a warning is logged
const LargeDocumentBytes = 100 * 1024 * 1024

var magic = []byte("%PDF-")

// Validator provides input validation for PDF bytes
type Validator struct {
	logger *observability.Logger
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{logger: observability.DefaultLogger().WithComponent("pdf")}
}

// WithLogger replaces the validator's logger
func (v *Validator) WithLogger(l *observability.Logger) *Validator {
	v.logger = l
	return v
}

// ValidateBytes checks that data is non-empty and carries a PDF header.
// The header may be preceded by junk bytes within the first kilobyte, as
// readers tolerate that.
func (v *Validator) ValidateBytes(data []byte) error {
	if len(data) == 0 {
		return domain.DecodeError("PDF document is empty", nil)
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if !bytes.Contains(head, magic) {
		return domain.DecodeError("data is not a PDF document (missing %PDF header)", nil)
	}

	// Just a warning, not an error
	if len(data) > LargeDocumentBytes {
		v.logger.Warn().
			Int("size_mb", len(data)/(1024*1024)).
			Msg("PDF document is very large, rendering may take a while")
	}
	return nil
}
