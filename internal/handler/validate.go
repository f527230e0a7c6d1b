package handler

import "strings"

const maxUsernameLength = 39

// validateUsername applies GitHub's login rules: 1 to 39 ASCII letters, digits
// or single hyphens, neither starting nor ending with a hyphen.
// It returns the violation message, or "" when username is valid.
func validateUsername(username string) string {
	if strings.TrimSpace(username) == "" {
		return "Username cannot be blank"
	}
	if len(username) > maxUsernameLength {
		return "Invalid GitHub username format"
	}
	for i := 0; i < len(username); i++ {
		ch := username[i]
		switch {
		case isAlphanumeric(ch):
		case ch == '-':
			if i == 0 || i == len(username)-1 || username[i+1] == '-' {
				return "Invalid GitHub username format"
			}
		default:
			return "Invalid GitHub username format"
		}
	}
	return ""
}

func isAlphanumeric(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ('0' <= ch && ch <= '9')
}
