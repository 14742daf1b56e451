package forms

import (
	"github.com/charmbracelet/huh"
)

// LoginForm prompts for any LoginInput field that is still empty.
func LoginForm(in *LoginInput) *huh.Form {
	var fields []huh.Field
	if in.Username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&in.Username).
			Validate(func(string) error { return ValidateField(in, "Username") }))
	}
	fields = append(fields, huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(&in.Password).
		Validate(func(string) error { return ValidateField(in, "Password") }))
	return huh.NewForm(huh.NewGroup(fields...))
}

// RegisterForm prompts for every registration field.
func RegisterForm(in *RegisterInput) *huh.Form {
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().Title("Username").Value(&in.Username).
			Validate(func(string) error { return ValidateField(in, "Username") }),
		huh.NewInput().Title("Email").Value(&in.Email).
			Validate(func(string) error { return ValidateField(in, "Email") }),
		huh.NewInput().Title("Full name").Description("optional").Value(&in.FullName),
		huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&in.Password).
			Validate(func(string) error { return ValidateField(in, "Password") }),
	))
}
