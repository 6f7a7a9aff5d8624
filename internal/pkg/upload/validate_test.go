package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateImageBySniff(t *testing.T) {
	jpegHead := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngHead := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}

	mime, err := ValidateImageBySniff("watch.jpg", jpegHead)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)

	mime, err = ValidateImageBySniff("brooch.png", pngHead)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
}

func TestValidateImageBySniff_RejectsBadExtension(t *testing.T) {
	_, err := ValidateImageBySniff("payload.svg", []byte("<svg></svg>"))
	assert.Error(t, err)

	_, err = ValidateImageBySniff("notes.txt", []byte("hello"))
	assert.Error(t, err)
}

func TestValidateImageBySniff_RejectsScriptableContent(t *testing.T) {
	_, err := ValidateImageBySniff("fake.jpg", []byte("<!DOCTYPE html><html>"))
	assert.Error(t, err)
}
