package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// GenerateID returns a random 16-character alphanumeric id, optionally prefixed.
func GenerateID(prefix string) string {
	id, err := gonanoid.Generate(idAlphabet, 16)
	if err != nil {
		// only fails on a bad alphabet or length
		panic(err)
	}
	return prefix + id
}
