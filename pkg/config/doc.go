// Package config loads and validates digsinet.yml, the single YAML file
// that describes a run: the real network's topology, the siblings to
// create from it, the event broker backend, and which builders,
// interfaces and apps each controller wires up.
//
// It mirrors the source's config/settings.py field for field; where the
// Python uses a pydantic model with Field(alias=...), Go structs use
// yaml tags, and Validate plays the role pydantic's validators play.
package config
