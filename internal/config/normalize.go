package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeFFmpeg()
	if err := c.normalizeSpeech(); err != nil {
		return err
	}
	c.normalizeFilter()
	c.normalizeUpload()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.UploadDir, err = expandPath(c.Paths.UploadDir); err != nil {
		return fmt.Errorf("paths.upload_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if value, ok := os.LookupEnv("SPEECHTRIM_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.PublicURL = strings.TrimRight(strings.TrimSpace(c.Paths.PublicURL), "/")
	return nil
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	if c.FFmpeg.SampleRate <= 0 {
		c.FFmpeg.SampleRate = defaultSampleRate
	}
	c.FFmpeg.EnhanceFilter = strings.TrimSpace(c.FFmpeg.EnhanceFilter)
	if c.FFmpeg.EnhanceFilter == "" {
		c.FFmpeg.EnhanceFilter = defaultEnhanceFilter
	}
	c.FFmpeg.OutputFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.FFmpeg.OutputFormat), "."))
	if c.FFmpeg.OutputFormat == "" {
		c.FFmpeg.OutputFormat = defaultOutputFormat
	}
}

func (c *Config) normalizeSpeech() error {
	c.Speech.Binary = strings.TrimSpace(c.Speech.Binary)
	if c.Speech.Binary == "" {
		c.Speech.Binary = defaultWhisperBinary
	}
	if value, ok := os.LookupEnv("SPEECHTRIM_WHISPER_MODEL"); ok && strings.TrimSpace(value) != "" {
		c.Speech.ModelPath = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Speech.ModelPath) == "" {
		c.Speech.ModelPath = defaultWhisperModel
	}
	var err error
	if c.Speech.ModelPath, err = expandPath(c.Speech.ModelPath); err != nil {
		return fmt.Errorf("speech.model_path: %w", err)
	}
	c.Speech.Language = strings.ToLower(strings.TrimSpace(c.Speech.Language))
	if c.Speech.Language == "" {
		c.Speech.Language = defaultWhisperLanguage
	}
	if c.Speech.BeamSize <= 0 {
		c.Speech.BeamSize = defaultBeamSize
	}
	return nil
}

func (c *Config) normalizeFilter() {
	words := make([]string, 0, len(c.Filter.FillerWords))
	seen := make(map[string]struct{}, len(c.Filter.FillerWords))
	for _, word := range c.Filter.FillerWords {
		normalized := strings.Join(strings.Fields(strings.ToLower(word)), " ")
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		words = append(words, normalized)
	}
	c.Filter.FillerWords = words
}

func (c *Config) normalizeUpload() {
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = defaultUploadMaxBytes
	}
	exts := make([]string, 0, len(c.Upload.AllowedExtensions))
	for _, ext := range c.Upload.AllowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = append(exts, defaultAllowedExtensions...)
	}
	c.Upload.AllowedExtensions = exts
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
