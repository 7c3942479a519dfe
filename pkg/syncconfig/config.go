// Package syncconfig loads the sync engine's configuration, following
// the teacher's viper + mapstructure pattern for decoding nested
// settings out of a loosely-typed config tree.
package syncconfig

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EngineConfig controls the sync engine's behavior (§4.2, §4.6).
type EngineConfig struct {
	// MaxEntriesPerChunk bounds how many entities a single sync-chunk
	// request asks for; the reference value is 50.
	MaxEntriesPerChunk int `mapstructure:"max_entries_per_chunk"`
	// PersistentStorageRoot is the root directory for the sync-chunks
	// cache and the durable processors' journals.
	PersistentStorageRoot string `mapstructure:"persistent_storage_root"`
	// InkNoteImagesDir is where rasterized ink-note images are saved.
	InkNoteImagesDir string `mapstructure:"ink_note_images_dir"`
	// DownloadNoteThumbnails toggles the 300px PNG thumbnail fetch.
	DownloadNoteThumbnails bool `mapstructure:"download_note_thumbnails"`
	ThumbnailPixelSize     int  `mapstructure:"thumbnail_pixel_size"`
	// SaveInkNoteImages toggles rasterizing en-crypt-free ink
	// resources to disk during note processing.
	SaveInkNoteImages bool `mapstructure:"save_ink_note_images"`
	// FullReload, when true, requests sync chunks without expunge
	// notices (a from-scratch resync rather than an incremental one).
	FullReload bool `mapstructure:"full_reload"`
}

// DefaultEngineConfig returns the reference defaults named in spec §4.2
// and §4.5.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxEntriesPerChunk:     50,
		PersistentStorageRoot:  "sync_data",
		InkNoteImagesDir:       "ink_note_images",
		DownloadNoteThumbnails: true,
		ThumbnailPixelSize:     300,
		SaveInkNoteImages:      true,
		FullReload:             false,
	}
}

// LoadEngineConfig decodes an EngineConfig from a viper tree rooted at
// key (e.g. "sync"), falling back to DefaultEngineConfig for anything
// unset.
func LoadEngineConfig(v *viper.Viper, key string) (EngineConfig, error) {
	cfg := DefaultEngineConfig()
	if v == nil || !v.IsSet(key) {
		return cfg, nil
	}

	raw := v.Get(key)
	decoderCfg := &mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(decoderCfg)
	if err != nil {
		return cfg, fmt.Errorf("build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("decode sync engine config: %w", err)
	}
	return cfg, nil
}
