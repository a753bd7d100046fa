package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"media-converter/internal/logging"
	"media-converter/internal/media"
	"media-converter/internal/mediatypes"
	"media-converter/internal/memory"
	"media-converter/internal/metrics"
)

// Upload describes a freshly uploaded file.
type Upload struct {
	Path     string `json:"file"`
	Name     string `json:"name"`
	URL      string `json:"url,omitempty"`
	MimeType string `json:"type"`
	// AttachmentID is set when the upload is already registered in the
	// library. Conversion then updates the record in place.
	AttachmentID int64 `json:"attachment_id,omitempty"`
	// Title is filled in when the upload was renamed or converted.
	Title string `json:"title,omitempty"`
}

// ProcessUpload runs the upload hook: MP4 videos are renamed, images are
// converted, everything else passes through. Any failure returns up
// unchanged.
func (p *Pipeline) ProcessUpload(ctx context.Context, up Upload) Upload {
	if up.Name == "" {
		up.Name = filepath.Base(up.Path)
	}
	mimeType := mediatypes.NormalizeMime(up.MimeType)
	if mimeType == "" {
		mimeType = mediatypes.MimeFromPath(up.Path)
	}

	switch {
	case mimeType == mediatypes.MimeMP4:
		metrics.UploadsTotal.WithLabelValues("video").Inc()
		renamed, err := p.RenameVideo(ctx, up)
		if err != nil {
			return up
		}
		return renamed

	case mediatypes.UploadImageTypes[mimeType]:
		metrics.UploadsTotal.WithLabelValues("image").Inc()
		return p.convertUpload(ctx, up, mimeType)

	default:
		metrics.UploadsTotal.WithLabelValues("other").Inc()
		return up
	}
}

func (p *Pipeline) convertUpload(ctx context.Context, up Upload, mimeType string) Upload {
	p.audit.Appendf("Starting processing for: %s", up.Name)
	if _, raised := memory.EnsureMinimum(memory.MinimumConversionLimit); raised {
		p.audit.Appendf("Memory limit adjusted to %dM.", memory.MinimumConversionLimit>>20)
	}

	res := p.Convert(ctx, Request{
		Path:           up.Path,
		DeclaredFormat: mimeType,
		AttachmentID:   up.AttachmentID,
	})
	if !res.Success {
		logging.Debug("Upload %s left as is: %v", up.Name, res.Err)
		return up
	}

	out := up
	out.Path = res.NewPath
	out.Name = filepath.Base(res.NewPath)
	out.URL = swapBaseName(up.URL, up.Name, out.Name)
	out.MimeType = media.Target.MimeType()
	out.Title = res.Title
	return out
}

// RenameVideo gives an uploaded video a generated name in its directory.
func (p *Pipeline) RenameVideo(ctx context.Context, up Upload) (Upload, error) {
	if up.Name == "" {
		up.Name = filepath.Base(up.Path)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(up.Path)), ".")
	if ext == "" {
		ext = "mp4"
	}

	dest, err := p.names.Allocate(ctx, filepath.Dir(up.Path), ext)
	if err != nil {
		metrics.VideosRenamed.WithLabelValues("error").Inc()
		return up, err
	}

	for attempt := 1; ; attempt++ {
		err = p.move(up.Path, dest)
		if !errors.Is(err, fs.ErrExist) || attempt >= maxEncodeAttempts {
			break
		}
		next := p.names.Suffixed(dest)
		p.audit.Appendf("File collision: %s exists, using %s", filepath.Base(dest), filepath.Base(next))
		dest = next
	}
	if err != nil {
		metrics.VideosRenamed.WithLabelValues("error").Inc()
		logging.Error("Failed to rename video %s: %v", up.Path, err)
		p.audit.Appendf("Failed to rename video: %s", up.Name)
		return up, fmt.Errorf("rename %s: %w", up.Name, err)
	}

	metrics.VideosRenamed.WithLabelValues("success").Inc()

	out := up
	out.Path = dest
	out.Name = filepath.Base(dest)
	out.URL = swapBaseName(up.URL, up.Name, out.Name)
	out.Title = titleFromPath(dest)

	if up.AttachmentID != 0 && p.attachments != nil {
		p.updateAttachment(ctx, up.AttachmentID, dest, out.Title)
	}

	p.audit.Appendf("Video renamed to: %s", out.Name)
	logging.Info("Renamed video %s -> %s", up.Path, dest)
	return out, nil
}

// swapBaseName replaces the last occurrence of oldName in url with newName.
func swapBaseName(url, oldName, newName string) string {
	if url == "" || oldName == "" {
		return url
	}
	i := strings.LastIndex(url, oldName)
	if i < 0 {
		return url
	}
	return url[:i] + newName + url[i+len(oldName):]
}
