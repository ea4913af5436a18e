package services

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validPassenger() RegisterInput {
	return RegisterInput{
		FirstName: "Jane",
		LastName:  "Doe",
		Email:     "jane@x.com",
		Password:  "Passw0rd",
		Role:      "passenger",
	}
}

func validDriver() RegisterInput {
	in := validPassenger()
	in.Role = "driver"
	in.LicenseNumber = "D1234567"
	in.VehicleModel = "Toyota Prius"
	in.VehicleYear = 2019
	in.LicensePlate = "7ABC123"
	return in
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	return verr.Fields
}

func TestValidatorReportsEveryMissingField(t *testing.T) {
	v := NewValidator(nil)

	fields := fieldErrors(t, v.Struct(RegisterInput{}))
	for _, name := range []string{"firstName", "lastName", "email", "password", "role"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("expected error for %s, got %v", name, fields)
		}
	}
}

func TestValidatorDriverFieldsRequired(t *testing.T) {
	v := NewValidator(nil)

	in := validPassenger()
	in.Role = "driver"
	fields := fieldErrors(t, v.Struct(in))
	for _, name := range []string{"licenseNumber", "vehicleModel", "vehicleYear", "licensePlate"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("expected error for %s, got %v", name, fields)
		}
	}
	if len(fields) != 4 {
		t.Fatalf("unexpected extra errors: %v", fields)
	}

	if err := v.Struct(validPassenger()); err != nil {
		t.Fatalf("passenger should not need driver fields: %v", err)
	}
}

func TestValidatorVehicleYearRange(t *testing.T) {
	fixed := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	v := NewValidator(func() time.Time { return fixed })

	tests := []struct {
		year  int
		valid bool
	}{
		{year: 1899, valid: false},
		{year: 1900, valid: true},
		{year: 2026, valid: true},
		{year: 2027, valid: false},
		{year: 3000, valid: false},
	}
	for _, tt := range tests {
		in := validDriver()
		in.VehicleYear = tt.year
		err := v.Struct(in)
		if tt.valid && err != nil {
			t.Fatalf("year %d: unexpected error %v", tt.year, err)
		}
		if !tt.valid {
			fields := fieldErrors(t, err)
			if _, ok := fields["vehicleYear"]; !ok {
				t.Fatalf("year %d: expected vehicleYear error, got %v", tt.year, fields)
			}
		}
	}
}

func TestValidatorPasswordRules(t *testing.T) {
	v := NewValidator(nil)

	for _, password := range []string{"short1", "Passw0rd", "abc123"} {
		in := validPassenger()
		in.Password = password
		if err := v.Struct(in); err != nil {
			t.Fatalf("password %q should be valid: %v", password, err)
		}
	}

	for _, password := range []string{"ab1", "onlyletters", "12345678"} {
		in := validPassenger()
		in.Password = password
		fields := fieldErrors(t, v.Struct(in))
		if _, ok := fields["password"]; !ok {
			t.Fatalf("password %q should be rejected, got %v", password, fields)
		}
	}
}

func TestValidatorPasswordByteLimit(t *testing.T) {
	v := NewValidator(nil)

	in := validPassenger()
	in.Password = strings.Repeat("a1", maxPasswordBytes/2)
	if err := v.Struct(in); err != nil {
		t.Fatalf("%d byte password should be valid: %v", len(in.Password), err)
	}

	for _, password := range []string{
		strings.Repeat("a1", 40),
		strings.Repeat("é", 36) + "1",
	} {
		in.Password = password
		fields := fieldErrors(t, v.Struct(in))
		if fields["password"] != "Maximum length is 72 bytes" {
			t.Fatalf("password of %d bytes: unexpected errors %v", len(password), fields)
		}
	}
}

func TestValidatorRejectsBadEmailAndRole(t *testing.T) {
	v := NewValidator(nil)

	in := validPassenger()
	in.Email = "not-an-email"
	in.Role = "pilot"
	in.FirstName = "J"
	fields := fieldErrors(t, v.Struct(in))
	for _, name := range []string{"email", "role", "firstName"} {
		if _, ok := fields[name]; !ok {
			t.Fatalf("expected error for %s, got %v", name, fields)
		}
	}
}
