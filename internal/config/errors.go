package config

import "errors"

var (
	ErrConfigFileNotFound = errors.New("config: file not found")
	ErrConfigFileRead     = errors.New("config: could not read file")
	ErrConfigInvalid      = errors.New("config: invalid config file")
	ErrDBPathEmpty        = errors.New("config: db_path must not be empty")
	ErrOwnerEmpty         = errors.New("config: owner_user and owner_group must not be empty")
)
