package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nao1215/plexdns-gateway/pkg/provider"
)

// providersFile はPROVIDERS_FILEの形式。
//
//	providers:
//	  RFC2136:
//	    nameserver: 192.0.2.53:53
//	    tsig_key: update-key.
type providersFile struct {
	Providers map[string]map[string]string `yaml:"providers"`
}

// LoadProviders はYAMLファイルからプロバイダごとの設定を読み込む。
func LoadProviders(path string) (map[string]provider.Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("プロバイダ設定ファイルの読み込みに失敗: %w", err)
	}

	var f providersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("プロバイダ設定ファイルの解析に失敗: %s: %w", path, err)
	}

	out := make(map[string]provider.Settings, len(f.Providers))
	for name, settings := range f.Providers {
		out[name] = provider.Settings(settings)
	}
	return out, nil
}
