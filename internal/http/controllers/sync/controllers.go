// Package sync exposes the HTTP controllers for the onboarding flow.
package sync

import (
	syncsvc "github.com/dropDatabas3/syncgate/internal/sync"
)

// Controllers bundles the sync controllers for router wiring.
type Controllers struct {
	Authorize   *AuthorizeController
	Callback    *CallbackController
	Attachments *AttachmentsController
}

// NewControllers creates the full controller set over one orchestrator.
func NewControllers(service *syncsvc.Service) *Controllers {
	return &Controllers{
		Authorize:   NewAuthorizeController(service),
		Callback:    NewCallbackController(service),
		Attachments: NewAttachmentsController(service),
	}
}
