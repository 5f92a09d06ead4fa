// Package builder materialises a sibling's topology to disk and, when
// autostart is enabled, deploys it by invoking the external container-lab
// binary. It is the only package in the module that spawns a subprocess.
package builder
