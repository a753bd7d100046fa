package mediatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".jpg", MimeJPEG},
		{".JPEG", MimeJPEG},
		{".png", MimePNG},
		{".webp", MimeWebP},
		{".avif", MimeAVIF},
		{".mp4", MimeMP4},
		{".xyz", MimeUnknown},
		{"", MimeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, GetMimeType(tt.ext))
		})
	}
}

func TestMimeFromPath(t *testing.T) {
	assert.Equal(t, MimeJPEG, MimeFromPath("/uploads/2024/IMG_0001.JPG"))
	assert.Equal(t, MimeUnknown, MimeFromPath("/uploads/README"))
}

func TestNormalizeMime(t *testing.T) {
	assert.Equal(t, MimeJPEG, NormalizeMime("image/jpg"))
	assert.Equal(t, MimeJPEG, NormalizeMime(" IMAGE/PJPEG "))
	assert.Equal(t, MimePNG, NormalizeMime("image/png; charset=binary"))
}

func TestGetFileType(t *testing.T) {
	assert.Equal(t, FileTypeImage, GetFileType("image/avif"))
	assert.Equal(t, FileTypeVideo, GetFileType("video/mp4"))
	assert.Equal(t, FileTypeOther, GetFileType("application/pdf"))
	assert.Equal(t, FileTypeOther, GetFileType(""))
}

func TestIsBatchConvertible(t *testing.T) {
	tests := []struct {
		name string
		mime string
		path string
		want bool
	}{
		{"jpeg", "image/jpeg", "a.jpg", true},
		{"webp reprocessed", "image/webp", "a.webp", true},
		{"avif", "image/avif", "a.avif", true},
		{"gif excluded", "image/gif", "a.gif", false},
		{"video excluded", "video/mp4", "a.mp4", false},
		{"empty mime uses extension", "", "a.PNG", true},
		{"empty mime unknown extension", "", "a.txt", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBatchConvertible(tt.mime, tt.path))
		})
	}
}

func TestUploadTypesIncludeGIF(t *testing.T) {
	assert.True(t, UploadImageTypes[MimeGIF])
	assert.False(t, BatchImageTypes[MimeGIF])
}
