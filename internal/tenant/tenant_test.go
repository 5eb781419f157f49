package tenant

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akave-ai/nbstreamer/internal/model"
)

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var terr *Error
	require.True(t, errors.As(err, &terr), "expected *tenant.Error, got %v", err)
	return terr.Kind
}

func TestResolve_InjectsTenantWhenPayloadLacksIt(t *testing.T) {
	r := &Resolver{Allowed: NewAllowList("acme")}
	ev := model.RawEvent{"Message": "hi"}

	res, err := r.Resolve("ACME", ev)

	require.NoError(t, err)
	assert.Equal(t, "acme", res.Tenant)
	assert.Equal(t, "acme", res.Event[model.TenantField])
	assert.NotContains(t, ev, model.TenantField, "input event must not be mutated")
}

func TestResolve_MatchingPayloadTenant(t *testing.T) {
	r := &Resolver{}
	res, err := r.Resolve("acme", model.RawEvent{model.TenantField: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Tenant)
	assert.Equal(t, "Acme", res.Event[model.TenantField])
}

func TestResolve_Failures(t *testing.T) {
	r := &Resolver{Allowed: NewAllowList("acme", "globex")}

	cases := []struct {
		name string
		path string
		ev   model.RawEvent
		want Kind
	}{
		{"bad characters", "ac me", model.RawEvent{}, KindInvalidFormat},
		{"too long", strings.Repeat("a", 33), model.RawEvent{}, KindInvalidFormat},
		{"empty", "", model.RawEvent{}, KindInvalidFormat},
		{"not allowed", "initech", model.RawEvent{}, KindNotAllowed},
		{"mismatch", "acme", model.RawEvent{model.TenantField: "other"}, KindMismatch},
		{"non-string payload", "acme", model.RawEvent{model.TenantField: true}, KindInvalidFormat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.path, tc.ev)
			assert.Equal(t, tc.want, kindOf(t, err))
		})
	}
}

func TestResolve_NotAllowedListsTenants(t *testing.T) {
	r := &Resolver{Allowed: NewAllowList("globex", "acme")}
	_, err := r.ResolvePath("initech")
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, []string{"acme", "globex"}, terr.Allowed)
}

func TestResolve_EmptyAllowListAcceptsAnyValidTenant(t *testing.T) {
	r := &Resolver{Allowed: NewAllowList()}
	id, err := r.ResolvePath("anyone_42")
	require.NoError(t, err)
	assert.Equal(t, "anyone_42", id)
}

func TestResolveLegacy(t *testing.T) {
	strict := &Resolver{Allowed: NewAllowList("acme"), EnforceLegacy: true}
	lax := &Resolver{Allowed: NewAllowList("acme")}

	_, err := strict.ResolveLegacy(model.RawEvent{"Message": "x"})
	assert.Equal(t, KindMissing, kindOf(t, err))

	_, err = strict.ResolveLegacy(model.RawEvent{model.TenantField: "  "})
	assert.Equal(t, KindMissing, kindOf(t, err))

	_, err = strict.ResolveLegacy(model.RawEvent{model.TenantField: "initech"})
	assert.Equal(t, KindNotAllowed, kindOf(t, err))

	_, err = strict.ResolveLegacy(model.RawEvent{model.TenantField: "bad tenant!"})
	assert.Equal(t, KindInvalidFormat, kindOf(t, err))

	res, err := lax.ResolveLegacy(model.RawEvent{model.TenantField: "Initech"})
	require.NoError(t, err)
	assert.Equal(t, "initech", res.Tenant)

	res, err = strict.ResolveLegacy(model.RawEvent{model.TenantField: "ACME"})
	require.NoError(t, err)
	assert.Equal(t, "acme", res.Tenant)
}

func TestAllowList(t *testing.T) {
	a := NewAllowList(ParseList(" Acme, ,globex ")...)
	assert.Equal(t, []string{"acme", "globex"}, a.List())
	assert.True(t, a.Contains("ACME"))
	assert.True(t, a.Remove("globex"))
	assert.False(t, a.Remove("globex"))
	assert.Equal(t, 1, a.Len())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.txt")
	require.NoError(t, os.WriteFile(path, []byte("# tenants\nacme\n\n  Globex \n"), 0o600))

	ids, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, ids)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	v := validator.New()
	require.NoError(t, RegisterValidation(v))
	assert.NoError(t, v.Var("acme-01", ValidationTag))
	assert.Error(t, v.Var("Acme!", ValidationTag))
}
