package utils

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// GetEnv gets an environment variable with a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt gets an integer environment variable with a default value
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvBool gets a boolean environment variable with a default value
func GetEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// GetEnvList splits a comma separated environment variable, dropping empty items
func GetEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// ResolveConfFilePath resolves the full path to config file using SERVICE_HOME/conf/ as prefix
func ResolveConfFilePath(configPath string) string {
	if filepath.IsAbs(configPath) {
		return configPath
	}

	// For test config files (prefixed with "test_"), look in current directory first
	if strings.HasPrefix(filepath.Base(configPath), "test_") {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}

	homeDir := os.Getenv("SERVICE_HOME")
	if homeDir == "" {
		homeDir = "."
	}
	return filepath.Join(homeDir, "conf", configPath)
}

// LoadConfigMap reads a YAML file into a generic map, nil when missing or malformed
func LoadConfigMap(configPath string) map[string]any {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil
	}

	config := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil
	}
	return config
}
