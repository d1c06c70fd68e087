package model

import (
	"strings"
	"time"
)

// NameMaxLength is the width of the things.name column
const NameMaxLength = 255

// Thing is the single resource managed by the service
type Thing struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:index_things_on_name" validate:"notblank,max=255"`
	Description string    `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ThingAttributes are the user-editable fields. Nil fields are left unchanged.
type ThingAttributes struct {
	Name        *string `json:"name" form:"name"`
	Description *string `json:"description" form:"description"`
}

// NewThing builds a Thing from attributes
func NewThing(attrs ThingAttributes) *Thing {
	t := &Thing{}
	t.Assign(attrs)
	return t
}

// Assign copies the non-nil attributes onto t
func (t *Thing) Assign(attrs ThingAttributes) {
	if attrs.Name != nil {
		t.Name = strings.TrimSpace(*attrs.Name)
	}
	if attrs.Description != nil {
		t.Description = *attrs.Description
	}
}

// Validate checks the field rules. Uniqueness is checked by the repository.
func (t *Thing) Validate() error {
	if errs := validateStruct(t); errs.Any() {
		return errs
	}
	return nil
}

// Persisted reports whether t has been saved
func (t *Thing) Persisted() bool {
	return t.ID != 0
}
