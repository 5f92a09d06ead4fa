// Package task defines the tagged union of messages carried on broker
// channels (gNMI notifications, fuzzer requests/results, topology build
// requests/responses, overviews), replacing the source's "dict with a type
// field" protocol with a sum type whose variants carry typed payloads. Task
// still serialises to the same discriminated JSON shape ({"type": ..., ...})
// for wire compatibility with the field names spec.md documents.
package task
