package integration

import (
	"github.com/shiplane/shiplane/pkg/env"
)

// FromEnvironment wires HTTP adapters for every provider URL present
// in the environment. Families with an empty URL stay nil, which makes
// their tasks optional.
func FromEnvironment(vars env.Environment) *Registry {
	registry := &Registry{}

	if vars.SourceControlURL != "" {
		registry.SourceControl = NewHTTPSourceControl(vars.SourceControlURL)
	}
	if vars.CICDURL != "" {
		registry.CICD = NewHTTPCICD(vars.CICDURL)
	}
	if vars.TicketingURL != "" {
		registry.Ticketing = NewHTTPTicketing(vars.TicketingURL)
	}
	if vars.TestManagementURL != "" {
		registry.TestManagement = NewHTTPTestManagement(vars.TestManagementURL)
	}
	if vars.ChatWebhookURL != "" {
		registry.Chat = NewHTTPChat(vars.ChatWebhookURL)
	}
	if vars.StoreConnectURL != "" {
		registry.StoreConnect = NewHTTPStoreConnect(vars.StoreConnectURL)
	}

	return registry
}
