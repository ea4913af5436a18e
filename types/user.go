package types

import "time"

// Role is the authorization level of an account.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RolePassenger, RoleDriver, RoleAdmin:
		return true
	default:
		return false
	}
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user (UUID v4).
	ID string `json:"id" db:"id"`

	// FirstName and LastName are the user's legal names.
	FirstName string `json:"firstName" db:"first_name"`
	LastName  string `json:"lastName" db:"last_name"`

	// Email is the user's login address, stored lower-cased.
	Email string `json:"email" db:"email"`

	// Phone is an optional contact number.
	Phone string `json:"phone,omitempty" db:"phone"`

	// Role indicates the user's authorization level within the system.
	Role Role `json:"role" db:"role"`

	// Driver holds the vehicle details for users with the driver role.
	Driver *DriverInfo `json:"driver,omitempty" db:"-"`

	// ProfilePhotoID references the photo currently flagged as the
	// profile photo, if any.
	ProfilePhotoID *string `json:"profilePhotoId,omitempty" db:"profile_photo_id"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// DriverInfo is the role-specific data of a driver.
type DriverInfo struct {
	LicenseNumber string `json:"licenseNumber" db:"license_number"`
	VehicleModel  string `json:"vehicleModel" db:"vehicle_model"`
	VehicleYear   int    `json:"vehicleYear" db:"vehicle_year"`
	LicensePlate  string `json:"licensePlate" db:"license_plate"`
}
