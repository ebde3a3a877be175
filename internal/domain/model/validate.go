package model

import "github.com/go-playground/validator/v10"

// validate is shared because validator caches struct metadata per instance.
var validate = validator.New(validator.WithRequiredStructEnabled())
