package app

import (
	"github.com/omnirelay/golang_services/internal/core_notify/domain"
	"github.com/omnirelay/golang_services/internal/dispatch_service/provider"
	"github.com/omnirelay/golang_services/internal/platform/config"
)

// ChainsFromConfig builds the per-channel fallback chains from configuration.
// Channels with no configured chain are omitted; dispatching on them fails with
// a configuration error rather than a startup failure.
func ChainsFromConfig(cfg *config.Config) map[domain.Channel]domain.ProviderChain {
	chains := make(map[domain.Channel]domain.ProviderChain)
	for ch, names := range map[domain.Channel][]string{
		domain.ChannelEmail: cfg.DefaultEmailChain,
		domain.ChannelSMS:   cfg.DefaultSMSChain,
		domain.ChannelPush:  cfg.DefaultPushChain,
		domain.ChannelChat:  cfg.DefaultChatChain,
		domain.ChannelInApp: cfg.DefaultInAppChain,
	} {
		if len(names) == 0 {
			continue
		}
		chains[ch] = domain.ProviderChain{Primary: names[0], Fallbacks: names[1:]}
	}
	return chains
}

// CredentialsFromConfig converts configured credential maps into registry
// credentials and registers every configured provider name. Providers other
// than the built-in mock resolve through the generic webhook adapter.
func CredentialsFromConfig(cfg *config.Config, registry *provider.Registry) map[string]provider.Credentials {
	creds := make(map[string]provider.Credentials, len(cfg.ProviderCredentials))
	for name, kv := range cfg.ProviderCredentials {
		c := provider.Credentials{"name": name}
		for k, v := range kv {
			c[k] = v
		}
		creds[name] = c
		if name != "mock" {
			registry.Register(name, provider.WebhookFactory)
		}
	}
	if _, ok := creds["mock"]; !ok {
		creds["mock"] = provider.Credentials{"name": "mock"}
	}
	return creds
}
