// Package tenant resolves and validates the tenant an inbound event belongs to.
package tenant

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/akave-ai/nbstreamer/internal/model"
)

// Pattern is the accepted tenant id form after lowercasing.
const Pattern = `^[a-z0-9_-]{1,32}$`

var tenantRe = regexp.MustCompile(Pattern)

// ValidationTag is the validator tag registered by RegisterValidation.
const ValidationTag = "tenant"

// Kind classifies resolution failures.
type Kind string

const (
	KindInvalidFormat Kind = "INVALID_TENANT_FORMAT"
	KindNotAllowed    Kind = "INVALID_TENANT"
	KindMismatch      Kind = "TENANT_MISMATCH"
	KindMissing       Kind = "MISSING_TENANT"
)

// Error is a request-terminal tenant resolution failure.
type Error struct {
	Kind    Kind
	Tenant  string
	Payload string
	Allowed []string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidFormat:
		return fmt.Sprintf("tenant %q has invalid format", e.Tenant)
	case KindNotAllowed:
		return fmt.Sprintf("tenant %q is not allowed", e.Tenant)
	case KindMismatch:
		return fmt.Sprintf("path tenant %q does not match payload %s %q", e.Tenant, model.TenantField, e.Payload)
	case KindMissing:
		return fmt.Sprintf("payload has no %s field", model.TenantField)
	}
	return "tenant resolution failed"
}

// Valid reports whether id (already lowercased) matches Pattern.
func Valid(id string) bool {
	return tenantRe.MatchString(id)
}

// Normalize lowercases and trims a tenant candidate.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// RegisterValidation adds the "tenant" tag to v so structs can declare
// `validate:"tenant"` on tenant id fields.
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation(ValidationTag, func(fl validator.FieldLevel) bool {
		return Valid(fl.Field().String())
	})
}

// Resolver resolves tenants for the path-based and legacy endpoints.
type Resolver struct {
	// Allowed restricts tenants when it is non-empty.
	Allowed *AllowList
	// EnforceLegacy applies format and allow-list checks to legacy payload tenants.
	EnforceLegacy bool
}

// Resolution is a successfully resolved tenant and the event to process.
// Event is a copy of the input with NB_Tenant injected when it was absent.
type Resolution struct {
	Tenant string
	Event  model.RawEvent
}

// ResolvePath validates a path-supplied tenant without looking at the payload.
func (r *Resolver) ResolvePath(candidate string) (string, error) {
	id := Normalize(candidate)
	if !Valid(id) {
		return "", &Error{Kind: KindInvalidFormat, Tenant: id}
	}
	if err := r.checkAllowed(id); err != nil {
		return "", err
	}
	return id, nil
}

// Resolve checks the payload against an already resolved path tenant.
func (r *Resolver) Resolve(pathTenant string, ev model.RawEvent) (Resolution, error) {
	id, err := r.ResolvePath(pathTenant)
	if err != nil {
		return Resolution{}, err
	}
	out := ev.Clone()
	raw, present := ev[model.TenantField]
	if !present || raw == nil {
		out[model.TenantField] = id
		return Resolution{Tenant: id, Event: out}, nil
	}
	payload, ok := raw.(string)
	if !ok {
		return Resolution{}, &Error{Kind: KindInvalidFormat, Tenant: model.Stringify(raw)}
	}
	if p := Normalize(payload); p != id {
		return Resolution{}, &Error{Kind: KindMismatch, Tenant: id, Payload: p}
	}
	return Resolution{Tenant: id, Event: out}, nil
}

// ResolveLegacy takes the tenant from the payload's NB_Tenant field.
func (r *Resolver) ResolveLegacy(ev model.RawEvent) (Resolution, error) {
	raw, present := ev[model.TenantField]
	if !present || raw == nil {
		return Resolution{}, &Error{Kind: KindMissing}
	}
	payload, ok := raw.(string)
	if !ok {
		return Resolution{}, &Error{Kind: KindInvalidFormat, Tenant: model.Stringify(raw)}
	}
	id := Normalize(payload)
	if id == "" {
		return Resolution{}, &Error{Kind: KindMissing}
	}
	if r.EnforceLegacy {
		if !Valid(id) {
			return Resolution{}, &Error{Kind: KindInvalidFormat, Tenant: id}
		}
		if err := r.checkAllowed(id); err != nil {
			return Resolution{}, err
		}
	}
	return Resolution{Tenant: id, Event: ev.Clone()}, nil
}

func (r *Resolver) checkAllowed(id string) error {
	if r.Allowed == nil || r.Allowed.Len() == 0 || r.Allowed.Contains(id) {
		return nil
	}
	return &Error{Kind: KindNotAllowed, Tenant: id, Allowed: r.Allowed.List()}
}
