package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

/* ======================
   Request / Response Types
   ====================== */

type CredentialsRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type ClickRequest struct {
	Multiplier int64 `json:"multiplier"`
}

type AdminLoginRequest struct {
	Password string `json:"password"`
}

type SoonPageRequest struct {
	Page string `json:"page"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type AuthResponse struct {
	Message  string `json:"message"`
	Username string `json:"username"`
}

type CheckAuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

type ScoreResponse struct {
	Score int64 `json:"score"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type UpgradesResponse struct {
	Multiplier  int64 `json:"multiplier"`
	Autoclicker bool  `json:"autoclicker"`
}

type ClassementResponse struct {
	Classement []ClassementEntry `json:"classement"`
}

type SoonListResponse struct {
	Pages []string `json:"pages"`
}

/* ======================
   App
   ====================== */

// App is the process-wide state handed to every handler: no ambient
// globals.
type App struct {
	store       *Store
	leaderboard *LeaderboardCache
	adminHash   string
	limiter     *rateLimiter
}

/* ======================
   main()
   ====================== */

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	store, err := openStoreFromEnv()
	if err != nil {
		log.Fatal("failed to open database: ", err)
	}

	cachePath := strings.TrimSpace(os.Getenv("CLASSEMENT_CACHE_PATH"))
	if cachePath == "" {
		cachePath = "classement_cache.json"
	}
	refreshMinutes := parseEnvInt("CLASSEMENT_REFRESH_MINUTES", 60)
	leaderboard := newLeaderboardCache(store, cachePath, time.Duration(refreshMinutes)*time.Minute)
	if err := leaderboard.Rebuild(context.Background()); err != nil {
		// Serve the last snapshot (or nothing) until the database recovers.
		log.Println("initial classement build failed:", err)
		if err := leaderboard.LoadSnapshot(); err != nil {
			log.Println("classement snapshot load failed:", err)
		}
	}
	leaderboard.Start()

	adminHash := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH"))
	if adminHash == "" {
		log.Println("ADMIN_PASSWORD_HASH is not set; admin login disabled")
	}

	app := &App{
		store:       store,
		leaderboard: leaderboard,
		adminHash:   adminHash,
		limiter: newRateLimiter(
			parseEnvInt("AUTH_RATE_LIMIT", 30),
			time.Duration(parseEnvInt("AUTH_RATE_WINDOW_SECONDS", 60))*time.Second,
		),
	}

	mux := http.NewServeMux()
	registerRoutes(mux, app)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	addr := "0.0.0.0:" + port
	log.Println("Listening on", addr)
	if err := http.ListenAndServe(addr, maintenanceGate(store, mux)); err != nil {
		log.Fatal("server failed: ", err)
	}
}

/* ======================
   Routes
   ====================== */

func registerRoutes(mux *http.ServeMux, app *App) {
	mux.HandleFunc("/", pagesHandler(app))
	mux.HandleFunc("/health", healthHandler)

	mux.HandleFunc("/inscription", inscriptionHandler(app))
	mux.HandleFunc("/connexion", connexionHandler(app))
	mux.HandleFunc("/check-auth", checkAuthHandler(app))
	mux.HandleFunc("/deconnexion", deconnexionHandler(app))
	mux.HandleFunc("/changer-mot-de-passe", changePasswordHandler(app))

	mux.HandleFunc("/click", clickHandler(app))
	mux.HandleFunc("/score", scoreHandler(app))
	mux.HandleFunc("/reset", resetHandler(app))
	mux.HandleFunc("/buy-multiplier", buyMultiplierHandler(app))
	mux.HandleFunc("/buy-autoclicker", buyAutoclickerHandler(app))
	mux.HandleFunc("/upgrades", upgradesHandler(app))
	mux.HandleFunc("/classement-data", classementDataHandler(app))

	mux.HandleFunc("/admin-login", adminLoginHandler(app))
	mux.HandleFunc("/admin-reset-scores", adminResetScoresHandler(app))
	mux.HandleFunc("/admin/maintenance-on", maintenanceToggleHandler(app, true))
	mux.HandleFunc("/admin/maintenance-off", maintenanceToggleHandler(app, false))
	mux.HandleFunc("/admin/soon", soonHandler(app))
	mux.HandleFunc("/admin/unssoon", unssoonHandler(app))
	mux.HandleFunc("/admin/soon-list", soonListHandler(app))
}

func parseEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
