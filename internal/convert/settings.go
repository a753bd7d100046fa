package convert

import "media-converter/internal/naming"

// Settings control one pipeline. They are read-only once the pipeline is
// built.
type Settings struct {
	// MaxDimension bounds the longer side in pixels; 0 disables resizing.
	MaxDimension    int    `yaml:"max_dimension" json:"max_dimension"`
	Quality         int    `yaml:"quality" json:"quality"`
	DeleteOriginals bool   `yaml:"delete_originals" json:"delete_originals"`
	EnableLogging   bool   `yaml:"enable_logging" json:"enable_logging"`
	FilePrefix      string `yaml:"file_prefix" json:"file_prefix"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		MaxDimension:    1200,
		Quality:         85,
		DeleteOriginals: true,
		EnableLogging:   true,
		FilePrefix:      naming.DefaultPrefix,
	}
}

// Sanitize clamps quality to 1-100, turns a negative bound into 0 and strips
// disallowed prefix characters.
func (s Settings) Sanitize() Settings {
	if s.MaxDimension < 0 {
		s.MaxDimension = 0
	}
	s.Quality = min(max(s.Quality, 1), 100)
	s.FilePrefix = naming.SanitizePrefix(s.FilePrefix)
	return s
}
