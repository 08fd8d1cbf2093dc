// Package config handles configuration loading from files, environment variables, and flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment,
// e.g. OCIMIGRATE_SOURCE_REGION.
const EnvPrefix = "OCIMIGRATE"

// Progress backends.
const (
	BackendFile          = "file"
	BackendObjectStorage = "oci"
	BackendAzureBlob     = "azblob"
)

const (
	defaultStateFilePath = "migration.state.json"
	imageObjectSuffix    = ".img"
)

// ErrConfigNotFound is returned by Load when the given configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// Config holds the migration input. It is built once by the driver and never
// mutated afterwards.
type Config struct {
	SourceRegion             string
	SourceCompartmentID      string
	SourceInstanceID         string
	MigrationBucketName      string
	TargetRegion             string
	TargetCompartmentID      string
	TargetSubnetID           string
	TargetAvailabilityDomain string
	TargetInstanceShape      string
	TargetShapeOCPUs         float32
	TargetShapeMemoryGBs     float32
	NewImageName             string
	NewInstanceName          string

	StateFilePath          string
	ProgressBackend        string
	ProgressBucket         string
	ProgressObject         string
	AzureStorageAccountURL string
	AzureContainer         string

	OCIConfigFile string
	OCIProfile    string

	PollInterval         time.Duration
	InstancePollInterval time.Duration
	RetryMaxAttempts     int
	RetryMinDelay        time.Duration
	RetryMaxDelay        time.Duration
	RetryMultiplier      float64
}

func setDefaults() {
	viper.SetDefault("state_file_path", defaultStateFilePath)
	viper.SetDefault("progress_backend", BackendFile)
	viper.SetDefault("progress_object", defaultStateFilePath)
	viper.SetDefault("azure_container", "ocimigrate")
	viper.SetDefault("poll_interval", "30s")
	viper.SetDefault("instance_poll_interval", "20s")
	viper.SetDefault("retry_max_attempts", 5)
	viper.SetDefault("retry_min_delay", "5s")
	viper.SetDefault("retry_max_delay", "60s")
	viper.SetDefault("retry_multiplier", 2.0)
}

// Load initializes configuration from file, environment variables, and flags.
// An empty configFile skips the file and relies on the environment and flags.
// A configFile that does not exist yields ErrConfigNotFound; a file that
// cannot be parsed yields a read error.
func Load(configFile string) (*Config, error) {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configFile)
			}
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := &Config{
		SourceRegion:             viper.GetString("source_region"),
		SourceCompartmentID:      viper.GetString("source_compartment_id"),
		SourceInstanceID:         viper.GetString("source_instance_id"),
		MigrationBucketName:      viper.GetString("migration_bucket_name"),
		TargetRegion:             viper.GetString("target_region"),
		TargetCompartmentID:      viper.GetString("target_compartment_id"),
		TargetSubnetID:           viper.GetString("target_subnet_id"),
		TargetAvailabilityDomain: viper.GetString("target_ad"),
		TargetInstanceShape:      viper.GetString("target_instance_shape"),
		TargetShapeOCPUs:         float32(viper.GetFloat64("target_shape_ocpus")),
		TargetShapeMemoryGBs:     float32(viper.GetFloat64("target_shape_memory_gbs")),
		NewImageName:             viper.GetString("new_image_name"),
		NewInstanceName:          viper.GetString("new_instance_name"),
		StateFilePath:            viper.GetString("state_file_path"),
		ProgressBackend:          strings.ToLower(viper.GetString("progress_backend")),
		ProgressBucket:           viper.GetString("progress_bucket"),
		ProgressObject:           viper.GetString("progress_object"),
		AzureStorageAccountURL:   viper.GetString("azure_storage_account_url"),
		AzureContainer:           viper.GetString("azure_container"),
		OCIConfigFile:            viper.GetString("oci_config_file"),
		OCIProfile:               viper.GetString("oci_profile"),
		PollInterval:             viper.GetDuration("poll_interval"),
		InstancePollInterval:     viper.GetDuration("instance_poll_interval"),
		RetryMaxAttempts:         viper.GetInt("retry_max_attempts"),
		RetryMinDelay:            viper.GetDuration("retry_min_delay"),
		RetryMaxDelay:            viper.GetDuration("retry_max_delay"),
		RetryMultiplier:          viper.GetFloat64("retry_multiplier"),
	}

	return cfg, nil
}

// Validate checks the settings every workflow depends on: both regions, the
// progress backend and the retry/poll tuning.
func (c *Config) Validate() error {
	if c.SourceRegion == "" {
		return fmt.Errorf("source_region is required")
	}
	if c.TargetRegion == "" {
		return fmt.Errorf("target_region is required")
	}

	switch c.ProgressBackend {
	case BackendFile, "":
		if c.StateFilePath == "" {
			return fmt.Errorf("state_file_path is required for the file progress backend")
		}
	case BackendObjectStorage:
		if c.ProgressBucket == "" {
			return fmt.Errorf("progress_bucket is required for the %s progress backend", BackendObjectStorage)
		}
		if c.ProgressObject == "" {
			return fmt.Errorf("progress_object is required for the %s progress backend", BackendObjectStorage)
		}
	case BackendAzureBlob:
		if c.AzureStorageAccountURL == "" {
			return fmt.Errorf("azure_storage_account_url is required for the %s progress backend", BackendAzureBlob)
		}
		if c.AzureContainer == "" {
			return fmt.Errorf("azure_container is required for the %s progress backend", BackendAzureBlob)
		}
	default:
		return fmt.Errorf("unknown progress_backend %q (allowed: %s, %s, %s)",
			c.ProgressBackend, BackendFile, BackendObjectStorage, BackendAzureBlob)
	}

	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry_max_attempts must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.RetryMinDelay <= 0 {
		return fmt.Errorf("retry_min_delay must be positive")
	}
	if c.RetryMaxDelay < c.RetryMinDelay {
		return fmt.Errorf("retry_max_delay (%v) must not be less than retry_min_delay (%v)", c.RetryMaxDelay, c.RetryMinDelay)
	}
	if c.RetryMultiplier < 1 {
		return fmt.Errorf("retry_multiplier must be at least 1, got %v", c.RetryMultiplier)
	}
	if c.PollInterval <= 0 || c.InstancePollInterval <= 0 {
		return fmt.Errorf("poll_interval and instance_poll_interval must be positive")
	}
	return nil
}

// ValidateCompute checks the settings required by the compute migration workflow.
func (c *Config) ValidateCompute() error {
	required := []struct {
		key, value string
	}{
		{"source_compartment_id", c.SourceCompartmentID},
		{"source_instance_id", c.SourceInstanceID},
		{"migration_bucket_name", c.MigrationBucketName},
		{"target_compartment_id", c.TargetCompartmentID},
		{"target_subnet_id", c.TargetSubnetID},
		{"target_ad", c.TargetAvailabilityDomain},
		{"target_instance_shape", c.TargetInstanceShape},
		{"new_image_name", c.NewImageName},
		{"new_instance_name", c.NewInstanceName},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required for the compute workflow", r.key)
		}
	}
	if (c.TargetShapeOCPUs > 0) != (c.TargetShapeMemoryGBs > 0) {
		return fmt.Errorf("target_shape_ocpus and target_shape_memory_gbs must be set together")
	}
	return nil
}

// ImageObjectName returns the name of the exported image object in the staging bucket.
func (c *Config) ImageObjectName() string {
	return c.NewImageName + imageObjectSuffix
}
