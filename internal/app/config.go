package app

import "github.com/thushan/locallm/internal/config"

// setConfig swaps the live configuration, reload runs on the watcher goroutine
func (a *Application) setConfig(cfg *config.Config) {
	a.configMu.Lock()
	defer a.configMu.Unlock()
	a.config = cfg
}

func (a *Application) getConfig() *config.Config {
	a.configMu.RLock()
	defer a.configMu.RUnlock()
	return a.config
}
