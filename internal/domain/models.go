// Package domain defines the persistence models for the location-scoped
// form visibility and patient identifier subsystems. These types are mapped
// with GORM and form the core data layer of the module.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Entity and basis kind tags stored on EntityBasisMap rows. They scope the
// generic mapping table to the one relationship this module manages.
const (
	EntityKindForm    = "Form"
	BasisKindLocation = "Location"
)

// Location represents a physical site served by the deployment. A single
// deployment may serve several locations concurrently; at most one row is
// flagged as the system default, used when no session location is set.
//
// Fields:
//   - ID: integer identity assigned by the persistence layer on insert.
//   - Name: human-readable display name.
//   - IsDefault: marks the system default location (fallback resolution).
//   - Retired: soft retirement marker; retired locations are never resolved.
type Location struct {
	ID        int       `json:"id"         gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name"       gorm:"type:varchar(255);not null"`
	IsDefault bool      `json:"is_default" gorm:"not null;default:false;index"`
	Retired   bool      `json:"retired"    gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Location.
func (Location) TableName() string { return "locations" }

// User represents an authenticated account in the host platform. Only the
// properties this module consults are modeled: identity, username, and the
// super-user privilege that bypasses the visibility filter.
type User struct {
	ID        int       `json:"id"         gorm:"primaryKey;autoIncrement"`
	Username  string    `json:"username"   gorm:"type:varchar(64);not null;uniqueIndex"`
	SuperUser bool      `json:"super_user" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Form represents a clinical form definition. Forms receive their integer
// identity from the persistence layer on first insert, which is why the
// save-interception hooks distinguish the insert path from the update path.
type Form struct {
	ID        int            `json:"id"        gorm:"primaryKey;autoIncrement"`
	Name      string         `json:"name"      gorm:"type:varchar(255);not null"`
	Version   string         `json:"version"   gorm:"type:varchar(32);not null;default:'1'"`
	Published bool           `json:"published" gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"         gorm:"index"`
}

// TableName returns the database table name for Form.
func (Form) TableName() string { return "forms" }

// Patient represents a registered patient. The identifier association is
// cascade-saved with the patient so that a single insert persists both.
type Patient struct {
	ID         int       `json:"id"          gorm:"primaryKey;autoIncrement"`
	GivenName  string    `json:"given_name"  gorm:"type:varchar(128);not null"`
	FamilyName string    `json:"family_name" gorm:"type:varchar(128);not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Identifier is the primary patient identifier, rewritten in place by
	// the identifier enhancer before the first save.
	Identifier *PatientIdentifier `json:"identifier,omitempty" gorm:"foreignKey:PatientID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Patient.
func (Patient) TableName() string { return "patients" }

// PatientIdentifier holds the formatted identifier string for a patient,
// e.g. "PD200-25-000-001". The value is mutated in place by the enhancer;
// it is only ever parsed again to extract the numeric suffix on the next
// generation call.
type PatientIdentifier struct {
	ID         int       `json:"id"         gorm:"primaryKey;autoIncrement"`
	PatientID  int       `json:"patient_id" gorm:"index"`
	Identifier string    `json:"identifier" gorm:"type:varchar(64);not null;index"`
	Preferred  bool      `json:"preferred"  gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for PatientIdentifier.
func (PatientIdentifier) TableName() string { return "patient_identifiers" }

// EntityBasisMap is a generic binding between one entity (e.g. a form) and
// one basis (e.g. a location). The row-level visibility filter restricts
// query results to rows whose basis matches the caller's resolved location.
//
// Invariant: the tuple (entity type, entity identifier, basis type, basis
// identifier) is unique. A duplicate bind attempt is a no-op at the service
// layer, never a duplicate row; the unique index backs that up. Rows are
// created and deleted, never mutated in place.
type EntityBasisMap struct {
	UUID             string    `json:"uuid"              gorm:"type:char(36);primaryKey"`
	EntityType       string    `json:"entity_type"       gorm:"type:varchar(64);not null;uniqueIndex:ux_entity_basis,priority:1"`
	EntityIdentifier string    `json:"entity_identifier" gorm:"type:varchar(64);not null;uniqueIndex:ux_entity_basis,priority:2"`
	BasisType        string    `json:"basis_type"        gorm:"type:varchar(64);not null;uniqueIndex:ux_entity_basis,priority:3"`
	BasisIdentifier  string    `json:"basis_identifier"  gorm:"type:varchar(64);not null;uniqueIndex:ux_entity_basis,priority:4;index:idx_basis_lookup"`
	CreatorID        int       `json:"creator_id"        gorm:"not null"`
	DateCreated      time.Time `json:"date_created"`

	// Creator is the user who established the binding.
	Creator User `json:"-" gorm:"foreignKey:CreatorID;references:ID"`
}

// TableName returns the database table name for EntityBasisMap.
func (EntityBasisMap) TableName() string { return "entity_basis_maps" }

// IdentifierSource is the backing record for sequential patient identifier
// generation, identified by a fixed UUID configured per deployment. The
// sequence counter is only ever advanced, never retried or reused: each
// confirmed patient save consumes exactly one value.
type IdentifierSource struct {
	UUID              string    `json:"uuid"                gorm:"type:char(36);primaryKey"`
	Name              string    `json:"name"                gorm:"type:varchar(255);not null"`
	Prefix            string    `json:"prefix"              gorm:"type:varchar(32);not null;default:''"`
	NextSequenceValue int64     `json:"next_sequence_value" gorm:"not null;default:1"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for IdentifierSource.
func (IdentifierSource) TableName() string { return "identifier_sources" }
