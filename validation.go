package main

import "unicode"

func isValidUsername(pseudo string) bool {
	if len(pseudo) < 3 || len(pseudo) > 32 {
		return false
	}

	for _, r := range pseudo {
		if r == '-' || r == '_' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		return false
	}

	return true
}
