// Package config provides configuration structures and the target roster
// loader for irharvest. Config is populated from CLI flags and passed
// explicitly through the application; the roster is loaded once per run
// into immutable model.CompanyTarget values.
package config
