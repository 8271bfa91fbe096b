package variation

import (
	"fmt"
	"strings"
)

// Issue codes reported by ValidationError.
const (
	CodeMissingModelIDs        = "missing_model_ids"
	CodeInvalidModelID         = "invalid_model_id"
	CodeMissingRoles           = "missing_roles"
	CodeMissingRoleConfig      = "missing_role_config"
	CodeRoleNotEbayEnabled     = "role_not_ebay_enabled"
	CodeMissingAbbrevNoPadding = "missing_role_config_abbrev_no_padding"
	CodeMissingAbbrevPadding   = "missing_role_config_abbrev_with_padding"
	CodeInvalidMaterialID      = "invalid_material_id"
	CodeMissingColorIDs        = "missing_color_ids"
	CodeInvalidColorID         = "invalid_color_id"
	CodeInvalidDesignOptionIDs = "invalid_design_option_ids"
)

// Issue is one field-tagged problem with a generation request.
type Issue struct {
	Code    string  `json:"code"`
	Role    string  `json:"role,omitempty"`
	ID      int64   `json:"id,omitempty"`
	IDs     []int64 `json:"ids,omitempty"`
	Message string  `json:"message"`
}

// ValidationError rejects a generation request before anything is written.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid variation request"
	}
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Message)
	}
	return fmt.Sprintf("invalid variation request: %s", strings.Join(msgs, "; "))
}

// Has reports whether any issue carries code.
func (e *ValidationError) Has(code string) bool {
	for _, is := range e.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

type issues []Issue

func (is *issues) add(code, role string, id int64, format string, args ...any) {
	*is = append(*is, Issue{Code: code, Role: role, ID: id, Message: fmt.Sprintf(format, args...)})
}

func (is issues) err() error {
	if len(is) == 0 {
		return nil
	}
	return &ValidationError{Issues: is}
}
