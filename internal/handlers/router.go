package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nextai/nextai/internal/middleware"
	"github.com/sirupsen/logrus"
)

type Router struct {
	Auth           *AuthHandlers
	Reset          *ResetHandlers
	Profile        *ProfileHandlers
	Chats          *ChatHandlers
	AuthMiddleware *middleware.AuthMiddleware
	AllowedOrigins []string
}

// Handler builds the API. CORS wraps the router so preflight requests are
// answered before route matching.
func (rt *Router) Handler(logger *logrus.Logger) http.Handler {
	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/signup", rt.Auth.SignUp).Methods("POST", "OPTIONS")
	auth.HandleFunc("/signin", rt.Auth.SignIn).Methods("POST", "OPTIONS")
	auth.HandleFunc("/refresh", rt.Auth.RefreshToken).Methods("POST", "OPTIONS")
	auth.Handle("/signout", rt.AuthMiddleware.RequireAuth(http.HandlerFunc(rt.Auth.SignOut))).Methods("POST", "OPTIONS")

	pr := api.PathPrefix("/password-reset").Subrouter()
	pr.HandleFunc("", rt.Reset.Start).Methods("POST", "OPTIONS")
	pr.HandleFunc("/{id}", rt.Reset.Get).Methods("GET", "OPTIONS")
	pr.HandleFunc("/{id}/email", rt.Reset.SubmitEmail).Methods("POST", "OPTIONS")
	pr.HandleFunc("/{id}/code", rt.Reset.SubmitCode).Methods("POST", "OPTIONS")
	pr.HandleFunc("/{id}/password", rt.Reset.SubmitPassword).Methods("POST", "OPTIONS")
	pr.HandleFunc("/{id}/back", rt.Reset.Back).Methods("POST", "OPTIONS")

	protected := api.PathPrefix("/").Subrouter()
	protected.Use(rt.AuthMiddleware.RequireAuth)
	protected.HandleFunc("/me", rt.Profile.Me).Methods("GET")
	protected.HandleFunc("/me/financial", rt.Profile.GetFinancial).Methods("GET")
	protected.HandleFunc("/me/financial", rt.Profile.PutFinancial).Methods("PUT")
	protected.HandleFunc("/me/financial/plan", rt.Profile.PlanPayment).Methods("POST")
	protected.HandleFunc("/chats", rt.Chats.List).Methods("GET")
	protected.HandleFunc("/chats", rt.Chats.Create).Methods("POST")
	protected.HandleFunc("/chats/{id}", rt.Chats.Get).Methods("GET")
	protected.HandleFunc("/chats/{id}/messages", rt.Chats.SaveMessages).Methods("PUT")
	protected.HandleFunc("/chats/{id}/title", rt.Chats.Rename).Methods("PUT")

	return middleware.CORSMiddleware(rt.AllowedOrigins)(router)
}
