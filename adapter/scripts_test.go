package adapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixDriveLetterCasingUppercasesOnly(t *testing.T) {
	assert.Equal(t, "C:/app/main.js", fixDriveLetterCasing("c:/app/main.js"))
	assert.Equal(t, "D:/app/main.js", fixDriveLetterCasing("D:/app/main.js"))
	assert.Equal(t, "/app/main.js", fixDriveLetterCasing("/app/main.js"), "non-drive paths pass through unchanged")
	assert.Equal(t, "http://localhost/app.js", fixDriveLetterCasing("http://localhost/app.js"))
}
