package view

import "github.com/suteetoe/thing-service/internal/model"

// ThingsIndex is the data of things/index
type ThingsIndex struct {
	Things []model.Thing
}

// ThingPage is the data of things/show
type ThingPage struct {
	Thing *model.Thing
}

// ThingForm is the data of things/new and things/edit
type ThingForm struct {
	Thing  *model.Thing
	Errors *model.ValidationErrors
}

// NewThingForm wraps thing with an error list that is never nil
func NewThingForm(thing *model.Thing, errs *model.ValidationErrors) ThingForm {
	if errs == nil {
		errs = model.NewValidationErrors()
	}
	return ThingForm{Thing: thing, Errors: errs}
}

// UserForm is the data of users/sign_up and users/sign_in
type UserForm struct {
	Email  string
	Errors *model.ValidationErrors
}

// NewUserForm prefills email
func NewUserForm(email string, errs *model.ValidationErrors) UserForm {
	if errs == nil {
		errs = model.NewValidationErrors()
	}
	return UserForm{Email: email, Errors: errs}
}

// ErrorPage is the data of errors/404 and errors/500
type ErrorPage struct {
	Status  int
	Message string
}
