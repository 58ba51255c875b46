package convert

import "testing"

func TestExpandEnvSecret(t *testing.T) {
	t.Setenv("POLEBOT_TEST_SECRET", "super-secret-value")

	tests := []struct {
		name    string
		value   string
		want    string
		wantErr bool
	}{
		{name: "literal value passes through", value: "literal-api-key", want: "literal-api-key"},
		{name: "env marker resolved", value: "!!env:POLEBOT_TEST_SECRET", want: "super-secret-value"},
		{name: "missing env var errors", value: "!!env:POLEBOT_TEST_UNSET_XYZ", wantErr: true},
		{name: "empty var name errors", value: "!!env:", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandEnvSecret(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExpandEnvSecret(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Fatalf("ExpandEnvSecret(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestIsEnvSecret(t *testing.T) {
	if !IsEnvSecret("!!env:FOO") {
		t.Fatal("IsEnvSecret(!!env:FOO) = false, want true")
	}
	if IsEnvSecret("plain-value") {
		t.Fatal("IsEnvSecret(plain-value) = true, want false")
	}
}
