package provider

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory はプロバイダを生成するコンストラクタ関数。
type Factory func(settings Settings) (Provider, error)

// Registry はプロバイダ名とFactoryの対応を管理する。
// プロバイダ名は大文字小文字を区別しない。
type Registry struct {
	mu        sync.RWMutex
	factories map[string]registration
}

// registration は登録時の表記を保持したFactory。
type registration struct {
	name    string
	factory Factory
}

// NewRegistry は空のレジストリを生成する。
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]registration)}
}

// Register はプロバイダを登録する。同名のプロバイダが既にあればpanicする。
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(name)
	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("provider: %q is already registered", name))
	}
	r.factories[key] = registration{name: name, factory: f}
}

// New は名前に対応するプロバイダを設定値から生成する。
func (r *Registry) New(name string, settings Settings) (Provider, error) {
	r.mu.RLock()
	reg, ok := r.factories[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported DNS provider: %q (registered: %v)", name, r.Names())
	}
	return reg.factory(settings)
}

// Has は名前に対応するプロバイダが登録済みかを返す。
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(name)]
	return ok
}

// Names は登録済みのプロバイダ名を昇順で返す。
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for _, reg := range r.factories {
		names = append(names, reg.name)
	}
	sort.Strings(names)
	return names
}
