package vars

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

func TestResolveLiteralAndPlaceholder(t *testing.T) {
	raw := RawVars{
		{Name: "APP_NAME", Value: "courier"},
		{Name: "ARTIFACT", Value: "${APP_NAME}-release"},
	}
	env, err := Resolve(raw, []string{"HOME=/home/ci"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := env.Lookup("ARTIFACT"); got != "courier-release" {
		t.Fatalf("expected courier-release, got %q", got)
	}
	if got, _ := env.Lookup("HOME"); got != "/home/ci" {
		t.Fatalf("expected OS variable to survive, got %q", got)
	}
}

func TestResolveManifestOverridesOSEnvironment(t *testing.T) {
	raw := RawVars{{Name: "BUILD_MODE", Value: "release"}}
	env, err := Resolve(raw, []string{"BUILD_MODE=debug"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := env.Lookup("BUILD_MODE"); got != "release" {
		t.Fatalf("manifest value should win, got %q", got)
	}
}

func TestResolveShellDirective(t *testing.T) {
	raw := RawVars{{Name: "API_KEY", Value: "$(echo secret123)"}}
	env, err := Resolve(raw, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := env.Lookup("API_KEY"); got != "secret123" {
		t.Fatalf("expected trimmed stdout, got %q", got)
	}
}

func TestResolveShellDirectiveSeesEarlierVariables(t *testing.T) {
	raw := RawVars{
		{Name: "CHANNEL", Value: "beta"},
		{Name: "TAG", Value: "$(echo v1-$CHANNEL)"},
	}
	env, err := Resolve(raw, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := env.Lookup("TAG"); got != "v1-beta" {
		t.Fatalf("expected v1-beta, got %q", got)
	}
}

func TestResolveFailingDirectiveNamesKey(t *testing.T) {
	raw := RawVars{{Name: "BROKEN", Value: "$(exit 3)"}}
	_, err := Resolve(raw, nil)
	if err == nil {
		t.Fatal("expected resolution error")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %T", err)
	}
	if resErr.Key != "BROKEN" {
		t.Fatalf("error should name the offending key, got %q", resErr.Key)
	}
}

func TestResolveRejectsDirectiveOutputWithMarkers(t *testing.T) {
	raw := RawVars{{Name: "A", Value: "$(echo '${NOPE}')"}}
	_, err := Resolve(raw, nil)
	if err == nil {
		t.Fatal("expected marker-carrying directive output to fail resolution")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %T", err)
	}
	if resErr.Key != "A" {
		t.Fatalf("error should name the offending key, got %q", resErr.Key)
	}
	if !strings.Contains(resErr.Reason, "${NOPE}") {
		t.Fatalf("error should show the leftover marker, got %q", resErr.Reason)
	}
}

func TestResolveRejectsMarkerSmuggledThroughOSEnvironment(t *testing.T) {
	// The OS value itself is never scanned, but referencing it from a
	// manifest variable must not let the marker survive the pass.
	raw := RawVars{{Name: "TAG", Value: "${CHANNEL}"}}
	_, err := Resolve(raw, []string{"CHANNEL=${UNSET}"})
	if err == nil {
		t.Fatal("expected marker from OS value to fail resolution")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %T", err)
	}
	if resErr.Key != "CHANNEL" {
		t.Fatalf("error should name the marker-carrying variable, got %q", resErr.Key)
	}
}

func TestSubstituteRefusesMarkerCarryingValue(t *testing.T) {
	env, err := Resolve(nil, []string{"A=${NOPE}"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	out, err := Substitute("--key=${A}", env)
	if err == nil {
		t.Fatalf("expected marker-carrying value to fail, got %q", out)
	}
	if out != "" {
		t.Fatalf("expected empty result on failure, got %q", out)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %T", err)
	}
	if resErr.Key != "A" {
		t.Fatalf("error should name the referenced variable, got %q", resErr.Key)
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	raw := RawVars{
		{Name: "A", Value: "one"},
		{Name: "B", Value: "${A}-two"},
		{Name: "C", Value: "$(echo fixed)"},
	}
	first, err := Resolve(raw, []string{"PATH=/usr/bin"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Resolve(raw, []string{"PATH=/usr/bin"})
		if err != nil {
			t.Fatalf("resolve #%d: %v", i, err)
		}
		if strings.Join(again.Slice(), "\n") != strings.Join(first.Slice(), "\n") {
			t.Fatalf("resolution differed on attempt %d", i)
		}
	}
}

func TestResolveForwardReferenceFails(t *testing.T) {
	// Single-pass expansion: LATER is not visible yet when EARLY resolves.
	raw := RawVars{
		{Name: "EARLY", Value: "${LATER}"},
		{Name: "LATER", Value: "value"},
	}
	_, err := Resolve(raw, nil)
	if err == nil {
		t.Fatal("expected forward reference to fail")
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %T", err)
	}
}

func TestSubstituteLeavesNoMarkers(t *testing.T) {
	env, err := Resolve(RawVars{
		{Name: "VERSION", Value: "1.4.2"},
		{Name: "FLAVOR", Value: "prod"},
	}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	out, err := Substitute("--build-name=${VERSION} --flavor=${FLAVOR}", env)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if strings.Contains(out, "${") {
		t.Fatalf("placeholder markers remain: %q", out)
	}
	if out != "--build-name=1.4.2 --flavor=prod" {
		t.Fatalf("unexpected expansion: %q", out)
	}
}

func TestSubstituteUnknownKeyReturnsNoPartialResult(t *testing.T) {
	env, err := Resolve(RawVars{{Name: "KNOWN", Value: "x"}}, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	out, err := Substitute("${KNOWN}-${MISSING}", env)
	if err == nil {
		t.Fatal("expected unknown key to fail")
	}
	if out != "" {
		t.Fatalf("expected empty result on failure, got %q", out)
	}
	var resErr *ResolutionError
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ResolutionError, got %T", err)
	}
	if resErr.Key != "MISSING" {
		t.Fatalf("error should name the missing key, got %q", resErr.Key)
	}
}

func TestSubstituteUnterminatedPlaceholder(t *testing.T) {
	env, _ := Resolve(nil, nil)
	if _, err := Substitute("--key=${OPEN", env); err == nil {
		t.Fatal("expected unterminated placeholder to fail")
	}
}

func TestRawVarsYAMLPreservesDeclarationOrder(t *testing.T) {
	doc := strings.TrimSpace(`
ZULU: last-first
ALPHA: ${ZULU}
MIKE: middle
`)
	var raw RawVars
	if err := yaml.Unmarshal([]byte(doc), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"ZULU", "ALPHA", "MIKE"}
	if len(raw) != len(want) {
		t.Fatalf("expected %d vars, got %d", len(want), len(raw))
	}
	for i, name := range want {
		if raw[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, raw[i].Name)
		}
	}
	// Declaration order means ALPHA can see ZULU even though ZULU sorts later.
	env, err := Resolve(raw, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got, _ := env.Lookup("ALPHA"); got != "last-first" {
		t.Fatalf("expected last-first, got %q", got)
	}
}

func TestRawVarsRejectsNonMapping(t *testing.T) {
	var raw RawVars
	if err := yaml.Unmarshal([]byte("- a\n- b\n"), &raw); err == nil {
		t.Fatal("expected sequence to be rejected")
	}
}
