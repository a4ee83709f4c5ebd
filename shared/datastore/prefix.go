package datastore

import (
	"os"
	"strings"

	"todoservice/shared/utils"
)

// EsIndexPrefix resolves the deployment-wide index prefix
func EsIndexPrefix() string {
	// 1) Environment variables
	p := strings.TrimSpace(os.Getenv("ES_INDEX_PREFIX"))
	if p == "" {
		p = strings.TrimSpace(os.Getenv("OPENSEARCH_INDEX_PREFIX"))
	}
	// 2) Config file (conf/opensearch.yaml), key: index_prefix
	if p == "" {
		cfg := utils.LoadConfigMap(utils.ResolveConfFilePath("opensearch.yaml"))
		if s, ok := cfg["index_prefix"].(string); ok {
			p = strings.TrimSpace(s)
		}
	}
	return p
}

// PrefixedIndex returns name with the deployment prefix applied, if any
func PrefixedIndex(name string) string {
	p := EsIndexPrefix()
	if p == "" || strings.HasPrefix(name, p) {
		return name
	}
	return p + name
}
