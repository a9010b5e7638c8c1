package utils

import (
	"crypto/rand"
	"encoding/hex"
	"path/filepath"
	"strings"

	"nexus_go/models"

	"golang.org/x/crypto/bcrypt"
)

// AttachmentExtensions are the file types accepted on support tickets.
var AttachmentExtensions = []string{"jpg", "jpeg", "png", "gif", "pdf", "doc", "docx", "txt"}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a password with its hash
func CheckPassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// GenerateRandomString returns length hex characters from crypto/rand.
func GenerateRandomString(length int) (string, error) {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:length], nil
}

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	switch role {
	case models.RoleMember, models.RoleOfficer, models.RoleAdmin:
		return true
	}
	return false
}

// IsValidStatus checks if an account status is valid
func IsValidStatus(status string) bool {
	return status == models.UserStatusActive || status == models.UserStatusInactive
}

// IsManagementRole reports whether role may manage requirements, payments and events.
func IsManagementRole(role string) bool {
	return role == models.RoleOfficer || role == models.RoleAdmin
}

// IsValidFileExtension checks the extension of filename case-insensitively.
func IsValidFileExtension(filename string, allowedExtensions []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// SanitizeString removes null bytes and surrounding whitespace.
func SanitizeString(input string) string {
	return strings.TrimSpace(strings.ReplaceAll(input, "\x00", ""))
}
