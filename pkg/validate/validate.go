// Package validate checks network configuration inputs before any device call
// is made.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// VLAN ID bounds and reserved IDs.
const (
	MinVLANID = 1
	MaxVLANID = 4094
)

// ErrValidationFailed is the sentinel wrapped by all validation errors.
var ErrValidationFailed = errors.New("validation failed")

// ReservedVLANs must never be modified or deleted. VLAN 1 is the default VLAN.
var ReservedVLANs = map[int]bool{1: true}

var (
	vlanNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,32}$`)
	ipPattern       = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

	reservedVLANNames = map[string]bool{
		"default":    true,
		"management": true,
		"native":     true,
	}
)

// Error represents one or more validation failures.
type Error struct {
	Errors []string
}

func (e *Error) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *Error) Unwrap() error {
	return ErrValidationFailed
}

// Builder helps accumulate validation errors.
type Builder struct {
	errors []string
}

// Add adds an error message if condition is false
func (b *Builder) Add(condition bool, message string) *Builder {
	if !condition {
		b.errors = append(b.errors, message)
	}
	return b
}

// AddError adds an error message unconditionally
func (b *Builder) AddError(message string) *Builder {
	b.errors = append(b.errors, message)
	return b
}

// AddErrorf adds a formatted error message
func (b *Builder) AddErrorf(format string, args ...interface{}) *Builder {
	b.errors = append(b.errors, fmt.Sprintf(format, args...))
	return b
}

// HasErrors returns true if there are validation errors
func (b *Builder) HasErrors() bool {
	return len(b.errors) > 0
}

// Build returns the validation error or nil if no errors
func (b *Builder) Build() error {
	if len(b.errors) == 0 {
		return nil
	}
	return &Error{Errors: b.errors}
}

// IPAddress validates a dotted-quad IPv4 address. Reserved ranges used by the
// devices themselves (0.x, 255.x) are rejected.
func IPAddress(ip string) error {
	ip = strings.TrimSpace(ip)
	b := &Builder{}

	if ip == "" {
		return b.AddError("IP address must be a non-empty string").Build()
	}
	if !ipPattern.MatchString(ip) {
		return b.AddError("IP address must be in format x.x.x.x").Build()
	}
	for _, octet := range strings.Split(ip, ".") {
		n := 0
		fmt.Sscanf(octet, "%d", &n)
		if n > 255 {
			b.AddErrorf("IP address octet %d is out of range (0-255)", n)
		}
	}
	if strings.HasPrefix(ip, "0.") || strings.HasPrefix(ip, "255.") {
		b.AddError("IP address appears to be reserved")
	}
	return b.Build()
}

// VLANID validates a VLAN identifier for modification. Reserved VLANs are
// rejected here, before any device call.
func VLANID(id int) error {
	b := &Builder{}
	if id < MinVLANID || id > MaxVLANID {
		b.AddErrorf("VLAN ID must be between %d and %d", MinVLANID, MaxVLANID)
	} else if ReservedVLANs[id] {
		b.AddErrorf("VLAN ID %d is reserved and cannot be modified", id)
	}
	return b.Build()
}

// VLANName validates a VLAN name: 1-32 chars of letters, numbers, dashes,
// and underscores, excluding reserved names.
func VLANName(name string) error {
	name = strings.TrimSpace(name)
	b := &Builder{}

	if name == "" {
		return b.AddError("VLAN name cannot be empty or just whitespace").Build()
	}
	if len(name) > 32 {
		return b.AddError("VLAN name cannot exceed 32 characters").Build()
	}
	if !vlanNamePattern.MatchString(name) {
		b.AddError("VLAN name can only contain letters, numbers, dashes, and underscores")
	}
	if reservedVLANNames[strings.ToLower(name)] {
		b.AddErrorf("VLAN name '%s' is reserved", name)
	}
	return b.Build()
}

// VLANOp is one entry of a bulk VLAN request.
type VLANOp struct {
	Operation string `json:"operation"`
	VLANID    int    `json:"vlan_id"`
	VLANName  string `json:"vlan_name,omitempty"`
}

var validOperations = map[string]bool{"create": true, "delete": true, "modify": true}

// VLANOperation validates a single VLAN operation and returns all problems
// found rather than stopping at the first.
func VLANOperation(op VLANOp) []string {
	b := &Builder{}

	if !validOperations[op.Operation] {
		b.AddErrorf("Invalid operation '%s'. Must be one of: create, delete, modify", op.Operation)
	}
	if err := VLANID(op.VLANID); err != nil {
		var verr *Error
		if errors.As(err, &verr) {
			b.errors = append(b.errors, verr.Errors...)
		}
	}
	if (op.Operation == "create" || op.Operation == "modify") && op.VLANName != "" {
		if err := VLANName(op.VLANName); err != nil {
			var verr *Error
			if errors.As(err, &verr) {
				b.errors = append(b.errors, verr.Errors...)
			}
		}
	}
	return b.errors
}

// BulkOperation validates a bulk request. The result maps the index of each
// invalid operation to its error messages; an empty map means all valid.
// Duplicate VLAN IDs within one batch are rejected.
func BulkOperation(ops []VLANOp) map[int][]string {
	allErrors := make(map[int][]string)
	seen := make(map[int]bool)

	for i, op := range ops {
		errs := VLANOperation(op)
		if seen[op.VLANID] {
			errs = append(errs, fmt.Sprintf("Duplicate VLAN ID %d in batch operation", op.VLANID))
		} else {
			seen[op.VLANID] = true
		}
		if len(errs) > 0 {
			allErrors[i] = errs
		}
	}
	return allErrors
}

// SanitizeInput strips control characters and truncates to maxLength.
func SanitizeInput(s string, maxLength int) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= 32 {
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	if len(out) > maxLength {
		out = out[:maxLength]
	}
	return strings.TrimSpace(out)
}
