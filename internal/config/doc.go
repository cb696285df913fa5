// Package config handles YAML configuration loading with environment
// variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable
// interpolation, which keeps secrets such as api.token and
// recorder.database.password out of the file itself.
package config
