package utils

import (
	"os"
	"strconv"
)

func ParseWithFallback(envName string, fallback string) string {
	result := os.Getenv(envName)
	if result == "" {
		result = fallback
	}

	return result
}

func ParseIntWithFallback(envName string, fallback int) int {
	raw := os.Getenv(envName)
	if raw == "" {
		return fallback
	}

	result, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return result
}
