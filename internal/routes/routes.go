package routes

import (
	"net/http"

	"github.com/AnshRaj112/quill-backend/internal/handlers"
	"github.com/AnshRaj112/quill-backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// Deps are the handlers and guards the router mounts. Admin is optional.
type Deps struct {
	Auth           *middleware.Auth
	AuthConfigured bool
	FrontendDir    string

	Sessions *handlers.AuthHandler
	Account  *handlers.AccountHandler
	Entries  *handlers.EntryHandler
	Prompts  *handlers.PromptHandler
	Billing  *handlers.BillingHandler
	Editor   *handlers.EditorHandler
	Admin    *handlers.AdminHandler
}

func SetupRoutes(r chi.Router, d Deps) {
	// OAuth
	r.Get("/auth/login", d.Sessions.Login)
	r.Get("/auth/callback", d.Sessions.Callback)
	r.Get("/callback", d.Sessions.Callback)
	r.Post("/auth/logout", d.Sessions.Logout)

	// Stripe calls this with its own signature, not a user token
	r.Post("/api/stripe/webhook", d.Billing.Webhook)

	userLimit := middleware.UserRateLimit()

	r.Group(func(r chi.Router) {
		r.Use(d.Auth.RequireUser)
		r.Use(userLimit)

		r.Get("/api/me", d.Account.Me)
		r.Get("/api/usage", d.Account.Usage)

		r.Get("/api/entries", d.Entries.List)
		r.Post("/api/entries", d.Entries.Create)
		r.Put("/api/entries/autosave", d.Entries.Autosave)
		r.Get("/api/entries/{id}", d.Entries.Get)
		r.Put("/api/entries/{id}", d.Entries.Update)
		r.Delete("/api/entries/{id}", d.Entries.Delete)

		r.Post("/api/stripe/create-checkout-session", d.Billing.CreateCheckoutSession)
		r.Post("/api/billing/success", d.Billing.Success)
	})

	// Prompt generation checks the method before the caller
	r.Group(func(r chi.Router) {
		r.Use(middleware.OnlyMethod(http.MethodPost))
		r.Use(d.Auth.RequireUser)
		r.Use(userLimit)

		r.HandleFunc("/api/prompts", d.Prompts.Generate)
		r.HandleFunc("/functions/v1/generate-prompts", d.Prompts.Generate)
	})

	r.With(d.Auth.RequireUserOrQuery).Get("/ws/editor", d.Editor.Serve)

	if d.Admin != nil {
		r.Group(func(r chi.Router) {
			r.Use(d.Admin.RequireToken)
			r.Get("/api/admin/blocked-ip", d.Admin.BlockedIP)
			r.Put("/api/admin/unblock-ip", d.Admin.UnblockIP)
		})
	}

	r.HandleFunc("/api/*", handlers.APINotFound)

	// Pages, behind the session guard
	pages := middleware.PageGuard(d.Auth, d.AuthConfigured)(handlers.Pages(d.FrontendDir))
	r.Method(http.MethodGet, "/*", pages)
	r.Method(http.MethodHead, "/*", pages)
}
