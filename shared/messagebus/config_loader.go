package messagebus

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadProducerConfigMap reads the flat Kafka client settings from a YAML file.
// An empty path yields an empty map so every default applies.
func LoadProducerConfigMap(configPath string) (map[string]interface{}, error) {
	configMap := make(map[string]interface{})
	if configPath == "" {
		return configMap, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "read producer config %s", configPath)
	}
	if err := yaml.Unmarshal(data, &configMap); err != nil {
		return nil, errors.Wrapf(err, "parse producer config %s", configPath)
	}
	return configMap, nil
}

// GetStringValue safely gets a string value from config map with default
func GetStringValue(config map[string]interface{}, key, defaultValue string) string {
	if val, ok := config[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

// GetBoolValue safely gets a bool value from config map with default
func GetBoolValue(config map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := config[key]; ok {
		if b, ok := val.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// GetIntValue safely gets an int value from config map with default
func GetIntValue(config map[string]interface{}, key string, defaultValue int) int {
	if val, ok := config[key]; ok {
		switch i := val.(type) {
		case int:
			return i
		case int64:
			return int(i)
		case float64:
			return int(i)
		}
	}
	return defaultValue
}
