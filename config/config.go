package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var ErrInvalidSettings = errors.New("config: invalid settings")

type LogConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Console    bool   `mapstructure:"console" yaml:"console"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

type Settings struct {
	// Recast
	CellSize        float32 `mapstructure:"cell_size" yaml:"cell_size"`
	CellHeight      float32 `mapstructure:"cell_height" yaml:"cell_height"`
	TileSize        int     `mapstructure:"tile_size" yaml:"tile_size"`
	BorderSize      int     `mapstructure:"border_size" yaml:"border_size"`
	MaxClimb        float32 `mapstructure:"max_climb" yaml:"max_climb"`
	MaxSlope        float32 `mapstructure:"max_slope" yaml:"max_slope"`
	SwimHeightScale float32 `mapstructure:"swim_height_scale" yaml:"swim_height_scale"`
	RegionMinSize   int     `mapstructure:"region_min_size" yaml:"region_min_size"`

	// Detour
	MaxTilesNumber int `mapstructure:"max_tiles_number" yaml:"max_tiles_number"`

	// Updater
	AsyncNavMeshUpdaterThreads int           `mapstructure:"async_nav_mesh_updater_threads" yaml:"async_nav_mesh_updater_threads"`
	MaxNavMeshTilesCacheSize   int64         `mapstructure:"max_nav_mesh_tiles_cache_size" yaml:"max_nav_mesh_tiles_cache_size"`
	GeometryCacheSize          int64         `mapstructure:"geometry_cache_size" yaml:"geometry_cache_size"`
	MinUpdateInterval          time.Duration `mapstructure:"min_update_interval" yaml:"min_update_interval"`
	JobPollInterval            time.Duration `mapstructure:"job_poll_interval" yaml:"job_poll_interval"`
	MaxJobRetries              int           `mapstructure:"max_job_retries" yaml:"max_job_retries"`

	// Debug dump
	EnableWriteRecastMeshToFile      bool   `mapstructure:"enable_write_recast_mesh_to_file" yaml:"enable_write_recast_mesh_to_file"`
	EnableWriteNavMeshToFile         bool   `mapstructure:"enable_write_nav_mesh_to_file" yaml:"enable_write_nav_mesh_to_file"`
	EnableRecastMeshFileNameRevision bool   `mapstructure:"enable_recast_mesh_file_name_revision" yaml:"enable_recast_mesh_file_name_revision"`
	EnableNavMeshFileNameRevision    bool   `mapstructure:"enable_nav_mesh_file_name_revision" yaml:"enable_nav_mesh_file_name_revision"`
	RecastMeshPathPrefix             string `mapstructure:"recast_mesh_path_prefix" yaml:"recast_mesh_path_prefix"`
	NavMeshPathPrefix                string `mapstructure:"nav_mesh_path_prefix" yaml:"nav_mesh_path_prefix"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

func Default() *Settings {
	return &Settings{
		CellSize:                   4,
		CellHeight:                 0.2,
		TileSize:                   64,
		BorderSize:                 16,
		MaxClimb:                   34,
		MaxSlope:                   49,
		SwimHeightScale:            0.9,
		RegionMinSize:              8,
		MaxTilesNumber:             512,
		AsyncNavMeshUpdaterThreads: 1,
		MaxNavMeshTilesCacheSize:   1024 * 1024,
		GeometryCacheSize:          16 * 1024 * 1024,
		MinUpdateInterval:          50 * time.Millisecond,
		JobPollInterval:            10 * time.Millisecond,
		MaxJobRetries:              3,
		RecastMeshPathPrefix:       "recastmesh",
		NavMeshPathPrefix:          "navmesh",
		Log: LogConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  64,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// TileWorldSize is the tile edge length in world units.
func (s *Settings) TileWorldSize() float32 {
	return float32(s.TileSize) * s.CellSize
}

// MaxTilesRadius is the tile ring distance from the player within which
// tiles are kept in the navmesh.
func (s *Settings) MaxTilesRadius() int {
	r := 0
	for (2*r+3)*(2*r+3) <= s.MaxTilesNumber {
		r++
	}
	return r
}

func (s *Settings) Validate() error {
	switch {
	case s.CellSize <= 0:
		return fmt.Errorf("%w: cell_size must be positive", ErrInvalidSettings)
	case s.CellHeight <= 0:
		return fmt.Errorf("%w: cell_height must be positive", ErrInvalidSettings)
	case s.TileSize <= 0:
		return fmt.Errorf("%w: tile_size must be positive", ErrInvalidSettings)
	case s.RegionMinSize < 0:
		return fmt.Errorf("%w: region_min_size must not be negative", ErrInvalidSettings)
	case s.MaxSlope < 0 || s.MaxSlope >= 90:
		return fmt.Errorf("%w: max_slope must be in [0, 90)", ErrInvalidSettings)
	case s.MaxTilesNumber <= 0:
		return fmt.Errorf("%w: max_tiles_number must be positive", ErrInvalidSettings)
	case s.AsyncNavMeshUpdaterThreads <= 0:
		return fmt.Errorf("%w: async_nav_mesh_updater_threads must be positive", ErrInvalidSettings)
	case s.MaxNavMeshTilesCacheSize < 0 || s.GeometryCacheSize < 0:
		return fmt.Errorf("%w: cache sizes must not be negative", ErrInvalidSettings)
	case s.MinUpdateInterval < 0:
		return fmt.Errorf("%w: min_update_interval must not be negative", ErrInvalidSettings)
	case s.JobPollInterval <= 0:
		return fmt.Errorf("%w: job_poll_interval must be positive", ErrInvalidSettings)
	case s.MaxJobRetries < 0:
		return fmt.Errorf("%w: max_job_retries must not be negative", ErrInvalidSettings)
	}
	return nil
}

// Load reads settings from a yaml file on top of Default. Every key can be
// overridden by a NAVMESH_<KEY> environment variable. An empty path only
// applies the environment.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("navmesh")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults, err := yaml.Marshal(Default())
	if err != nil {
		return nil, fmt.Errorf("config: encode defaults: %w", err)
	}
	if err := v.ReadConfig(strings.NewReader(string(defaults))); err != nil {
		return nil, fmt.Errorf("config: read defaults: %w", err)
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %s: %w", path, err)
		}
		defer f.Close()
		if err := v.MergeConfig(f); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// WriteDefault writes the default settings as yaml to path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("config: encode defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
